package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
)

type PgxPayoutRepository struct {
	BaseRepository
}

// newPgxPayoutRepository creates a new repository for payout request data.
func newPgxPayoutRepository(pool *pgxpool.Pool) portsrepo.PayoutRepositoryFacade {
	return &PgxPayoutRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.PayoutRepositoryFacade = (*PgxPayoutRepository)(nil)

const selectPayoutColumns = `payout_id, reader_id, amount, currency_code, period_start, period_end, status, failure_reason, transfer_ref, created_at, last_updated_at`

// SavePayout inserts a new payout request.
func (r *PgxPayoutRepository) SavePayout(ctx context.Context, payout domain.PayoutRequest) error {
	query := `
		INSERT INTO payout_requests (payout_id, reader_id, amount, currency_code, period_start, period_end, status, failure_reason, transfer_ref, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.Pool.Exec(ctx, query,
		payout.PayoutID,
		payout.ReaderID,
		payout.Amount,
		payout.CurrencyCode,
		payout.PeriodStart,
		payout.PeriodEnd,
		payout.Status,
		payout.FailureReason,
		payout.TransferRef,
		payout.CreatedAt,
		payout.LastUpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicate
		}
		return apperrors.NewAppError(500, "failed to insert payout "+payout.PayoutID, err)
	}
	return nil
}

// FindOverlapping returns a non-failed payout of the reader whose period overlaps
// [periodStart, periodEnd). Failed payouts don't count; their amounts remain
// payable in a later cycle.
func (r *PgxPayoutRepository) FindOverlapping(ctx context.Context, readerID string, periodStart, periodEnd time.Time) (*domain.PayoutRequest, error) {
	query := `
		SELECT ` + selectPayoutColumns + `
		FROM payout_requests
		WHERE reader_id = $1 AND status != $2 AND period_start < $4 AND period_end > $3
		ORDER BY created_at DESC
		LIMIT 1;
	`
	row := r.Pool.QueryRow(ctx, query, readerID, domain.PayoutFailed, periodStart, periodEnd)
	p, err := scanPayoutRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find overlapping payout for reader "+readerID, err)
	}
	return p, nil
}

// MarkSent flips a scheduled payout to sent and writes the reader's payout ledger
// entry, decrementing the reader balance, all in one transaction. A payout no
// longer in scheduled status yields apperrors.ErrConflict and writes nothing.
func (r *PgxPayoutRepository) MarkSent(ctx context.Context, payoutID string, transferRef string, debit domain.LedgerEntry) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	now := debit.CreatedAt
	updateQuery := `
		UPDATE payout_requests
		SET status = $2,
		    transfer_ref = $3,
		    last_updated_at = $4
		WHERE payout_id = $1 AND status = $5;
	`
	cmdTag, err := tx.Exec(ctx, updateQuery, payoutID, domain.PayoutSent, transferRef, now, domain.PayoutScheduled)
	if err != nil {
		return apperrors.NewAppError(500, "failed to mark payout sent "+payoutID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	_, err = tx.Exec(ctx, insertEntryQuery,
		debit.EntryID, debit.SessionID, debit.AccountID, debit.Kind, debit.Amount,
		debit.CurrencyCode, debit.MinuteIndex, debit.Memo, debit.CreatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert payout entry for "+payoutID, err)
	}

	if err := applyBalanceChanges(ctx, tx, map[string]decimal.Decimal{debit.AccountID: debit.Amount.Neg()}, now); err != nil {
		return err
	}

	return r.Commit(ctx, tx)
}

// MarkFailed records a failed disbursement. No ledger entry is written; the
// reader's credits stay available for the next cycle.
func (r *PgxPayoutRepository) MarkFailed(ctx context.Context, payoutID string, reason string) error {
	query := `
		UPDATE payout_requests
		SET status = $2,
		    failure_reason = $3,
		    last_updated_at = $4
		WHERE payout_id = $1 AND status = $5;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, payoutID, domain.PayoutFailed, reason, time.Now().UTC(), domain.PayoutScheduled)
	if err != nil {
		return apperrors.NewAppError(500, "failed to mark payout failed "+payoutID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// ListByReader returns the reader's payout requests, newest first.
func (r *PgxPayoutRepository) ListByReader(ctx context.Context, readerID string, limit int) ([]domain.PayoutRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + selectPayoutColumns + `
		FROM payout_requests
		WHERE reader_id = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := r.Pool.Query(ctx, query, readerID, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query payouts for reader "+readerID, err)
	}
	defer rows.Close()

	payouts := []domain.PayoutRequest{}
	for rows.Next() {
		p, err := scanPayoutRow(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan payout row for reader "+readerID, err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating payout rows for reader "+readerID, err)
	}
	return payouts, nil
}

func scanPayoutRow(row pgx.Row) (*domain.PayoutRequest, error) {
	var p domain.PayoutRequest
	err := row.Scan(
		&p.PayoutID,
		&p.ReaderID,
		&p.Amount,
		&p.CurrencyCode,
		&p.PeriodStart,
		&p.PeriodEnd,
		&p.Status,
		&p.FailureReason,
		&p.TransferRef,
		&p.CreatedAt,
		&p.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
