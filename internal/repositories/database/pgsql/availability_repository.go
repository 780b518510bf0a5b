package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
)

type PgxAvailabilityRepository struct {
	BaseRepository
}

// newPgxAvailabilityRepository creates a new repository for availability slot data.
func newPgxAvailabilityRepository(pool *pgxpool.Pool) portsrepo.AvailabilityRepositoryFacade {
	return &PgxAvailabilityRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.AvailabilityRepositoryFacade = (*PgxAvailabilityRepository)(nil)

const selectSlotColumns = `slot_id, reader_id, starts_at, ends_at, timezone, status, created_at, last_updated_at`

// ReplaceOpenSlots swaps out the reader's future open slots for the given ones in
// one transaction. Slots that are booked or blocked are never touched. New slots
// overlapping each other or a kept slot are rejected with apperrors.ErrConflict.
func (r *PgxAvailabilityRepository) ReplaceOpenSlots(ctx context.Context, readerID string, slots []domain.AvailabilitySlot) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	now := time.Now().UTC()
	deleteQuery := `
		DELETE FROM availability_slots
		WHERE reader_id = $1 AND status = $2 AND starts_at >= $3;
	`
	if _, err := tx.Exec(ctx, deleteQuery, readerID, domain.SlotOpen, now); err != nil {
		return apperrors.NewAppError(500, "failed to clear open slots for reader "+readerID, err)
	}

	// Kept slots (booked/blocked) still occupy their windows.
	keptQuery := `
		SELECT starts_at, ends_at
		FROM availability_slots
		WHERE reader_id = $1 AND ends_at > $2;
	`
	rows, err := tx.Query(ctx, keptQuery, readerID, now)
	if err != nil {
		return apperrors.NewAppError(500, "failed to query kept slots for reader "+readerID, err)
	}
	type window struct{ start, end time.Time }
	kept := []window{}
	for rows.Next() {
		var w window
		if err := rows.Scan(&w.start, &w.end); err != nil {
			rows.Close()
			return apperrors.NewAppError(500, "failed to scan kept slot row", err)
		}
		kept = append(kept, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewAppError(500, "error iterating kept slot rows", err)
	}

	for i, s := range slots {
		if !s.EndsAt.After(s.StartsAt) {
			return apperrors.ErrValidation
		}
		for _, w := range kept {
			if s.StartsAt.Before(w.end) && w.start.Before(s.EndsAt) {
				return apperrors.ErrConflict
			}
		}
		for _, other := range slots[i+1:] {
			if s.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(s.EndsAt) {
				return apperrors.ErrConflict
			}
		}
	}

	batch := &pgx.Batch{}
	insertQuery := `
		INSERT INTO availability_slots (slot_id, reader_id, starts_at, ends_at, timezone, status, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	for _, s := range slots {
		batch.Queue(insertQuery,
			s.SlotID, readerID, s.StartsAt, s.EndsAt, s.Timezone, domain.SlotOpen, s.CreatedAt, s.LastUpdatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return apperrors.NewAppError(500, "failed to insert slots for reader "+readerID, err)
	}

	return r.Commit(ctx, tx)
}

// ListSlots returns the reader's slots intersecting [from, to), ordered by start.
func (r *PgxAvailabilityRepository) ListSlots(ctx context.Context, readerID string, from, to time.Time) ([]domain.AvailabilitySlot, error) {
	query := `
		SELECT ` + selectSlotColumns + `
		FROM availability_slots
		WHERE reader_id = $1 AND ends_at > $2 AND starts_at < $3
		ORDER BY starts_at;
	`
	rows, err := r.Pool.Query(ctx, query, readerID, from, to)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query slots for reader "+readerID, err)
	}
	defer rows.Close()

	slots := []domain.AvailabilitySlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating slot rows for reader "+readerID, err)
	}
	return slots, nil
}

// FindOpenSlotAt returns an open slot of the reader covering the given instant.
func (r *PgxAvailabilityRepository) FindOpenSlotAt(ctx context.Context, readerID string, at time.Time) (*domain.AvailabilitySlot, error) {
	query := `
		SELECT ` + selectSlotColumns + `
		FROM availability_slots
		WHERE reader_id = $1 AND status = $2 AND starts_at <= $3 AND ends_at > $3
		ORDER BY starts_at
		LIMIT 1;
	`
	rows, err := r.Pool.Query(ctx, query, readerID, domain.SlotOpen, at)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query open slot for reader "+readerID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperrors.NewAppError(500, "error reading open slot for reader "+readerID, err)
		}
		return nil, apperrors.ErrNotFound
	}
	s, err := scanSlot(rows)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSlotStatus moves a slot between statuses as a compare-and-set.
func (r *PgxAvailabilityRepository) UpdateSlotStatus(ctx context.Context, slotID string, from, to domain.SlotStatus) error {
	query := `
		UPDATE availability_slots
		SET status = $3,
		    last_updated_at = $4
		WHERE slot_id = $1 AND status = $2;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, slotID, from, to, time.Now().UTC())
	if err != nil {
		return apperrors.NewAppError(500, "failed to update status for slot "+slotID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Either the slot is gone or someone else moved it first.
		var exists bool
		checkErr := r.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM availability_slots WHERE slot_id = $1)`, slotID).Scan(&exists)
		if checkErr == nil && !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrConflict
	}
	return nil
}

func scanSlot(rows pgx.Rows) (domain.AvailabilitySlot, error) {
	var s domain.AvailabilitySlot
	err := rows.Scan(
		&s.SlotID,
		&s.ReaderID,
		&s.StartsAt,
		&s.EndsAt,
		&s.Timezone,
		&s.Status,
		&s.CreatedAt,
		&s.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AvailabilitySlot{}, apperrors.ErrNotFound
		}
		return domain.AvailabilitySlot{}, apperrors.NewAppError(500, "failed to scan slot row", err)
	}
	return s, nil
}
