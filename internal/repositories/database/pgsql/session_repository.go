package pgsql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
)

type PgxSessionRepository struct {
	BaseRepository
}

// newPgxSessionRepository creates a new repository for the session archive.
func newPgxSessionRepository(pool *pgxpool.Pool) portsrepo.SessionArchiveRepositoryFacade {
	return &PgxSessionRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.SessionArchiveRepositoryFacade = (*PgxSessionRepository)(nil)

// ArchiveSession writes the terminal snapshot of a session. Re-archiving the same
// session overwrites the previous snapshot, which keeps the call idempotent.
func (r *PgxSessionRepository) ArchiveSession(ctx context.Context, session domain.ReadingSession) error {
	query := `
		INSERT INTO reading_sessions (
			session_id, client_id, reader_id, modality, rate_per_minute, currency_code,
			state, slot_id, started_at, last_billed_at, ended_at, accumulated_minutes,
			termination_reason, created_at, last_updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			last_billed_at = EXCLUDED.last_billed_at,
			ended_at = EXCLUDED.ended_at,
			accumulated_minutes = EXCLUDED.accumulated_minutes,
			termination_reason = EXCLUDED.termination_reason,
			last_updated_at = EXCLUDED.last_updated_at;
	`
	_, err := r.Pool.Exec(ctx, query,
		session.SessionID,
		session.ClientID,
		session.ReaderID,
		session.Modality,
		session.RatePerMinute,
		session.CurrencyCode,
		session.State,
		session.SlotID,
		session.StartedAt,
		session.LastBilledAt,
		session.EndedAt,
		session.AccumulatedMinutes,
		session.TerminationReason,
		session.CreatedAt,
		session.LastUpdatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to archive session "+session.SessionID, err)
	}
	return nil
}

// FindArchivedByID retrieves an archived session by its ID.
func (r *PgxSessionRepository) FindArchivedByID(ctx context.Context, sessionID string) (*domain.ReadingSession, error) {
	query := `
		SELECT session_id, client_id, reader_id, modality, rate_per_minute, currency_code,
		       state, slot_id, started_at, last_billed_at, ended_at, accumulated_minutes,
		       termination_reason, created_at, last_updated_at
		FROM reading_sessions
		WHERE session_id = $1;
	`
	var s domain.ReadingSession
	err := r.Pool.QueryRow(ctx, query, sessionID).Scan(
		&s.SessionID,
		&s.ClientID,
		&s.ReaderID,
		&s.Modality,
		&s.RatePerMinute,
		&s.CurrencyCode,
		&s.State,
		&s.SlotID,
		&s.StartedAt,
		&s.LastBilledAt,
		&s.EndedAt,
		&s.AccumulatedMinutes,
		&s.TerminationReason,
		&s.CreatedAt,
		&s.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find archived session "+sessionID, err)
	}
	return &s, nil
}
