package services

import (
	"context"
	"time"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/dto"
)

// PayoutSvcFacade aggregates reader credits into scheduled payout requests.
type PayoutSvcFacade interface {
	// RunOnce executes one scheduler cycle for the period containing now.
	// Re-running for an already-covered period creates no second request.
	RunOnce(ctx context.Context, now time.Time) (dto.PayoutRunSummary, error)

	// ListByReader returns the reader's payout history, newest first.
	ListByReader(ctx context.Context, readerID string, limit int) ([]domain.PayoutRequest, error)
}

// Disburser is the external payment-disbursement collaborator. Implementations
// wrap a payment gateway; this system only records the outcome.
type Disburser interface {
	// Disburse submits the transfer and returns the gateway's transfer reference.
	// The request's idempotency key is (reader, period).
	Disburse(ctx context.Context, payout domain.PayoutRequest) (transferRef string, err error)
}
