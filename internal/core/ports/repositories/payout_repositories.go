package repositories

import (
	"context"
	"time"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// PayoutRepositoryFacade persists payout requests and their ledger side effects.
type PayoutRepositoryFacade interface {
	// SavePayout inserts a new payout request in scheduled status.
	SavePayout(ctx context.Context, payout domain.PayoutRequest) error

	// FindOverlapping returns a non-failed payout request of the reader whose
	// period overlaps [periodStart, periodEnd), or apperrors.ErrNotFound. This is
	// the idempotence check: one non-failed request per (reader, period).
	FindOverlapping(ctx context.Context, readerID string, periodStart, periodEnd time.Time) (*domain.PayoutRequest, error)

	// MarkSent records the successful disbursement: the payout row flips to sent
	// and the reader's payout ledger entry is written, both in one transaction.
	MarkSent(ctx context.Context, payoutID string, transferRef string, debit domain.LedgerEntry) error

	// MarkFailed records a failed disbursement. The underlying credits stay
	// untouched and available for the next cycle.
	MarkFailed(ctx context.Context, payoutID string, reason string) error

	// ListByReader returns the reader's payout requests, newest first.
	ListByReader(ctx context.Context, readerID string, limit int) ([]domain.PayoutRequest, error)
}
