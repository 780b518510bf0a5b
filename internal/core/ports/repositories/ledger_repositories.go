package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// LedgerReader defines read operations over the append-only ledger.
type LedgerReader interface {
	// FindAccountByID retrieves a single account with its durable balance.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// BalanceByAccount returns the authoritative balance for an account.
	// It never computes optimistically; the value comes from the durable counter
	// maintained atomically with entry insertion.
	BalanceByAccount(ctx context.Context, accountID string) (decimal.Decimal, error)

	// EntriesByAccount lists recent entries for an account within [from, to),
	// newest first, capped at limit.
	EntriesByAccount(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.LedgerEntry, error)

	// ReaderBalances returns the current balance of every reader account.
	ReaderBalances(ctx context.Context) ([]domain.AccountBalance, error)
}

// LedgerWriter defines write operations over the append-only ledger.
type LedgerWriter interface {
	// SaveAccount creates an account row with a zero balance.
	SaveAccount(ctx context.Context, account domain.Account) error

	// AppendSplitTransfer atomically writes one debit and its covering credits,
	// updating all touched balances in the same transaction. The debited
	// account's pre-transfer balance must cover debit.Amount; otherwise nothing
	// is written and apperrors.ErrInsufficientFunds is returned. Billing ticks
	// and virtual gifts both go through here. Returns the debited account's
	// balance after the transfer.
	AppendSplitTransfer(ctx context.Context, debit domain.LedgerEntry, credits []domain.LedgerEntry) (decimal.Decimal, error)

	// AppendCredit writes a standalone credit entry (e.g. a deposit confirmed by
	// the external payment gateway) and bumps the account balance atomically.
	AppendCredit(ctx context.Context, entry domain.LedgerEntry) error
}

// LedgerRepositoryFacade combines ledger read and write operations.
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter
}
