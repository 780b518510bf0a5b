package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// payoutService aggregates reader credits into payout requests and records the
// outcome of each disbursement.
type payoutService struct {
	payoutRepo portsrepo.PayoutRepositoryFacade
	ledgerRepo portsrepo.LedgerRepositoryFacade
	disburser  portssvc.Disburser
	minAmount  decimal.Decimal
}

// NewPayoutService creates a new PayoutService.
func NewPayoutService(payoutRepo portsrepo.PayoutRepositoryFacade, ledgerRepo portsrepo.LedgerRepositoryFacade, disburser portssvc.Disburser, minAmount decimal.Decimal) portssvc.PayoutSvcFacade {
	return &payoutService{
		payoutRepo: payoutRepo,
		ledgerRepo: ledgerRepo,
		disburser:  disburser,
		minAmount:  minAmount,
	}
}

var _ portssvc.PayoutSvcFacade = (*payoutService)(nil)

// RunOnce executes one scheduler cycle for the calendar day containing now.
// Readers below the minimum payout amount are deferred silently; a reader whose
// period is already covered by a non-failed request is skipped, so re-running
// the cycle can never double-pay.
func (s *payoutService) RunOnce(ctx context.Context, now time.Time) (dto.PayoutRunSummary, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	summary := dto.PayoutRunSummary{TotalAmount: decimal.Zero}

	periodStart, periodEnd := payoutPeriod(now)

	balances, err := s.ledgerRepo.ReaderBalances(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load reader balances: %w", err)
	}
	summary.ReadersChecked = len(balances)

	for _, b := range balances {
		if b.Balance.LessThan(s.minAmount) {
			summary.Deferred++
			logger.Debug("Payout deferred below threshold",
				slog.String("reader_id", b.AccountID),
				slog.String("balance", b.Balance.String()),
			)
			continue
		}

		existing, err := s.payoutRepo.FindOverlapping(ctx, b.AccountID, periodStart, periodEnd)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Payout overlap check failed",
				slog.String("reader_id", b.AccountID),
				slog.String("error", err.Error()),
			)
			summary.Failed++
			continue
		}
		if existing != nil {
			summary.Deferred++
			logger.Debug("Payout period already covered",
				slog.String("reader_id", b.AccountID),
				slog.String("payout_id", existing.PayoutID),
			)
			continue
		}

		amount, err := s.processReader(ctx, b, periodStart, periodEnd)
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Sent++
		summary.TotalAmount = summary.TotalAmount.Add(amount)
	}

	logger.Info("Payout cycle finished",
		slog.Int("readers_checked", summary.ReadersChecked),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
		slog.Int("deferred", summary.Deferred),
		slog.String("total_amount", summary.TotalAmount.String()),
	)
	return summary, nil
}

// processReader creates the scheduled request, hands it to the disburser and
// records the outcome. The payout ledger entry is only written on success; a
// failed transfer leaves the reader's credits untouched for the next cycle.
func (s *payoutService) processReader(ctx context.Context, b domain.AccountBalance, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	now := time.Now().UTC()

	payout := domain.PayoutRequest{
		PayoutID:     uuid.NewString(),
		ReaderID:     b.AccountID,
		Amount:       b.Balance,
		CurrencyCode: domain.DefaultCurrency,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Status:       domain.PayoutScheduled,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			LastUpdatedAt: now,
		},
	}
	if err := s.payoutRepo.SavePayout(ctx, payout); err != nil {
		logger.Error("Failed to save payout request",
			slog.String("reader_id", b.AccountID),
			slog.String("error", err.Error()),
		)
		return decimal.Zero, err
	}

	transferRef, err := s.disburser.Disburse(ctx, payout)
	if err != nil {
		logger.Warn("Disbursement failed",
			slog.String("payout_id", payout.PayoutID),
			slog.String("reader_id", b.AccountID),
			slog.String("error", err.Error()),
		)
		if markErr := s.payoutRepo.MarkFailed(ctx, payout.PayoutID, err.Error()); markErr != nil {
			logger.Error("Failed to mark payout failed",
				slog.String("payout_id", payout.PayoutID),
				slog.String("error", markErr.Error()),
			)
		}
		return decimal.Zero, err
	}

	debit := domain.LedgerEntry{
		EntryID:      uuid.NewString(),
		AccountID:    b.AccountID,
		Kind:         domain.EntryPayout,
		Amount:       payout.Amount,
		CurrencyCode: payout.CurrencyCode,
		Memo:         "payout " + payout.IdempotencyKey(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.payoutRepo.MarkSent(ctx, payout.PayoutID, transferRef, debit); err != nil {
		// The transfer went out but our record didn't stick. Loud log; the
		// overlap check keeps the period from being paid twice.
		logger.Error("Failed to mark payout sent",
			slog.String("payout_id", payout.PayoutID),
			slog.String("transfer_ref", transferRef),
			slog.String("error", err.Error()),
		)
		return decimal.Zero, err
	}

	logger.Info("Payout sent",
		slog.String("payout_id", payout.PayoutID),
		slog.String("reader_id", b.AccountID),
		slog.String("amount", payout.Amount.String()),
		slog.String("transfer_ref", transferRef),
	)
	return payout.Amount, nil
}

// ListByReader returns the reader's payout history, newest first.
func (s *payoutService) ListByReader(ctx context.Context, readerID string, limit int) ([]domain.PayoutRequest, error) {
	return s.payoutRepo.ListByReader(ctx, readerID, limit)
}

// payoutPeriod is the fixed calendar-day window containing t, in UTC.
func payoutPeriod(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
