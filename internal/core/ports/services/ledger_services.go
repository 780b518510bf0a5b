package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// LedgerSvcFacade exposes the money operations of the engine: the per-tick
// split write, virtual gifts, deposits and the balance read model.
type LedgerSvcFacade interface {
	// BillTick debits the client one unit of the session rate and credits reader
	// and platform their shares, all atomically. Returns the client balance after
	// the debit. apperrors.ErrInsufficientFunds means nothing was written.
	BillTick(ctx context.Context, session *domain.ReadingSession, minuteIndex int64) (decimal.Decimal, error)

	// Gift transfers a virtual gift from client to reader (minus platform cut)
	// during a live session, independent of the per-minute tick.
	Gift(ctx context.Context, session *domain.ReadingSession, amount decimal.Decimal, memo string) error

	// Deposit records a credit confirmed by the external payment gateway.
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal, memo string) error

	// Balance returns the authoritative balance for an account.
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// Entries lists recent entries for an account within [from, to).
	Entries(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.LedgerEntry, error)
}
