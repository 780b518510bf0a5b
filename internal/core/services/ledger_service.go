package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/middleware"
	"github.com/soulsight/soulsight_backend/internal/utils/accounting"
)

// ledgerService provides the money operations of the engine: per-tick split
// writes, virtual gifts, deposits and the balance read model.
type ledgerService struct {
	ledgerRepo        portsrepo.LedgerRepositoryFacade
	readerShare       decimal.Decimal
	platformAccountID string
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepositoryFacade, readerShare decimal.Decimal, platformAccountID string) portssvc.LedgerSvcFacade {
	return &ledgerService{
		ledgerRepo:        ledgerRepo,
		readerShare:       readerShare,
		platformAccountID: platformAccountID,
	}
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// BillTick charges the client one unit of the session rate for minute
// minuteIndex and distributes it between reader and platform. All three entries
// land in one storage transaction with the balance guard applied; on
// ErrInsufficientFunds nothing was written.
func (s *ledgerService) BillTick(ctx context.Context, session *domain.ReadingSession, minuteIndex int64) (decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	debit, credits, err := s.buildSplitEntries(session, session.RatePerMinute, &minuteIndex, fmt.Sprintf("reading minute %d", minuteIndex))
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.ledgerRepo.AppendSplitTransfer(ctx, debit, credits)
	if err != nil {
		return decimal.Zero, err
	}

	logger.Debug("Billing tick settled",
		slog.String("session_id", session.SessionID),
		slog.Int64("minute_index", minuteIndex),
		slog.String("amount", session.RatePerMinute.String()),
		slog.String("client_balance", balance.String()),
	)
	return balance, nil
}

// Gift transfers a virtual gift from the session's client to its reader, split
// the same way as a billing tick but independent of the minute cadence.
func (s *ledgerService) Gift(ctx context.Context, session *domain.ReadingSession, amount decimal.Decimal, memo string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.ErrValidation
	}
	if session.State != domain.StateActive {
		return apperrors.ErrConflict
	}

	if memo == "" {
		memo = "virtual gift"
	}
	debit, credits, err := s.buildSplitEntries(session, amount, nil, memo)
	if err != nil {
		return err
	}

	if _, err := s.ledgerRepo.AppendSplitTransfer(ctx, debit, credits); err != nil {
		return err
	}

	middleware.GetLoggerFromCtx(ctx).Info("Gift settled",
		slog.String("session_id", session.SessionID),
		slog.String("amount", amount.String()),
	)
	return nil
}

// Deposit records a credit confirmed by the external payment gateway.
func (s *ledgerService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, memo string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.ErrValidation
	}
	if _, err := s.ledgerRepo.FindAccountByID(ctx, accountID); err != nil {
		return err
	}

	now := time.Now().UTC()
	if memo == "" {
		memo = "deposit"
	}
	entry := domain.LedgerEntry{
		EntryID:      uuid.NewString(),
		AccountID:    accountID,
		Kind:         domain.EntryCredit,
		Amount:       amount,
		CurrencyCode: domain.DefaultCurrency,
		Memo:         memo,
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.AppendCredit(ctx, entry); err != nil {
		return fmt.Errorf("failed to record deposit for account %s: %w", accountID, err)
	}

	middleware.GetLoggerFromCtx(ctx).Info("Deposit recorded",
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
	)
	return nil
}

// Balance returns the authoritative balance for an account.
func (s *ledgerService) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.ledgerRepo.BalanceByAccount(ctx, accountID)
}

// Entries lists recent entries for an account within [from, to).
func (s *ledgerService) Entries(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.LedgerEntry, error) {
	if !to.After(from) {
		return nil, apperrors.ErrValidation
	}
	return s.ledgerRepo.EntriesByAccount(ctx, accountID, from, to, limit)
}

// buildSplitEntries constructs the client debit and its reader/platform credits
// for one transfer, verifying the zero-sum invariant before anything is written.
func (s *ledgerService) buildSplitEntries(session *domain.ReadingSession, gross decimal.Decimal, minuteIndex *int64, memo string) (domain.LedgerEntry, []domain.LedgerEntry, error) {
	readerAmount, platformAmount, err := accounting.SplitAmount(gross, s.readerShare)
	if err != nil {
		return domain.LedgerEntry{}, nil, fmt.Errorf("failed to split amount for session %s: %w", session.SessionID, err)
	}

	now := time.Now().UTC()
	sessionID := session.SessionID
	debit := domain.LedgerEntry{
		EntryID:      uuid.NewString(),
		SessionID:    &sessionID,
		AccountID:    session.ClientID,
		Kind:         domain.EntryDebit,
		Amount:       gross,
		CurrencyCode: session.CurrencyCode,
		MinuteIndex:  minuteIndex,
		Memo:         memo,
		CreatedAt:    now,
	}
	credits := []domain.LedgerEntry{
		{
			EntryID:      uuid.NewString(),
			SessionID:    &sessionID,
			AccountID:    session.ReaderID,
			Kind:         domain.EntryCredit,
			Amount:       readerAmount,
			CurrencyCode: session.CurrencyCode,
			MinuteIndex:  minuteIndex,
			Memo:         memo,
			CreatedAt:    now,
		},
		{
			EntryID:      uuid.NewString(),
			SessionID:    &sessionID,
			AccountID:    s.platformAccountID,
			Kind:         domain.EntryCredit,
			Amount:       platformAmount,
			CurrencyCode: session.CurrencyCode,
			MinuteIndex:  minuteIndex,
			Memo:         memo,
			CreatedAt:    now,
		},
	}

	if err := accounting.ValidateTickBalance(debit, credits); err != nil {
		return domain.LedgerEntry{}, nil, fmt.Errorf("entries for session %s do not balance: %w", session.SessionID, err)
	}
	return debit, credits, nil
}
