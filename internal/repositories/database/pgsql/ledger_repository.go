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

type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for account and ledger entry data.
func newPgxLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepositoryFacade
var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const insertEntryQuery = `
	INSERT INTO ledger_entries (entry_id, session_id, account_id, kind, amount, currency_code, minute_index, memo, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

// SaveAccount creates a new account row.
func (r *PgxLedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (account_id, kind, currency_code, balance, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.Pool.Exec(ctx, query,
		account.AccountID,
		account.Kind,
		account.CurrencyCode,
		account.Balance,
		account.CreatedAt,
		account.LastUpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicate
		}
		return apperrors.NewAppError(500, "failed to insert account "+account.AccountID, err)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `
		SELECT account_id, kind, currency_code, balance, created_at, last_updated_at
		FROM accounts
		WHERE account_id = $1;
	`
	var account domain.Account
	err := r.Pool.QueryRow(ctx, query, accountID).Scan(
		&account.AccountID,
		&account.Kind,
		&account.CurrencyCode,
		&account.Balance,
		&account.CreatedAt,
		&account.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find account by ID "+accountID, err)
	}
	return &account, nil
}

// BalanceByAccount returns the durable balance counter for an account.
func (r *PgxLedgerRepository) BalanceByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	query := `SELECT balance FROM accounts WHERE account_id = $1;`
	var balance decimal.Decimal
	err := r.Pool.QueryRow(ctx, query, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperrors.ErrNotFound
		}
		return decimal.Zero, apperrors.NewAppError(500, "failed to read balance for account "+accountID, err)
	}
	return balance, nil
}

// EntriesByAccount lists entries for an account within [from, to), newest first.
func (r *PgxLedgerRepository) EntriesByAccount(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT entry_id, session_id, account_id, kind, amount, currency_code, minute_index, memo, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, entry_id DESC
		LIMIT $4;
	`
	rows, err := r.Pool.Query(ctx, query, accountID, from, to, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query entries for account "+accountID, err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		err := rows.Scan(
			&e.EntryID,
			&e.SessionID,
			&e.AccountID,
			&e.Kind,
			&e.Amount,
			&e.CurrencyCode,
			&e.MinuteIndex,
			&e.Memo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan entry row for account "+accountID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating entry rows for account "+accountID, err)
	}
	return entries, nil
}

// ReaderBalances returns the current balance of every reader account.
func (r *PgxLedgerRepository) ReaderBalances(ctx context.Context) ([]domain.AccountBalance, error) {
	query := `
		SELECT account_id, balance
		FROM accounts
		WHERE kind = $1
		ORDER BY account_id;
	`
	rows, err := r.Pool.Query(ctx, query, domain.AccountReader)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query reader balances", err)
	}
	defer rows.Close()

	balances := []domain.AccountBalance{}
	for rows.Next() {
		var b domain.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Balance); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan reader balance row", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating reader balance rows", err)
	}
	return balances, nil
}

// AppendSplitTransfer writes one debit and its covering credits, and updates every
// touched balance, in a single DB transaction. The debited account's row is locked
// first; if its balance cannot cover the debit, nothing is written and
// apperrors.ErrInsufficientFunds is returned. Returns the debited account's balance
// after the transfer.
func (r *PgxLedgerRepository) AppendSplitTransfer(ctx context.Context, debit domain.LedgerEntry, credits []domain.LedgerEntry) (decimal.Decimal, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer r.Rollback(ctx, tx) // Ignored once committed

	// 1. Lock all touched accounts in a stable order to avoid deadlocks between
	// concurrent ticks.
	accountIDs := []string{debit.AccountID}
	for _, c := range credits {
		accountIDs = append(accountIDs, c.AccountID)
	}
	lockedBalances, err := lockAccountBalances(ctx, tx, accountIDs)
	if err != nil {
		return decimal.Zero, err
	}

	// 2. Balance guard on the debited account.
	debitorBalance, ok := lockedBalances[debit.AccountID]
	if !ok {
		return decimal.Zero, apperrors.ErrNotFound
	}
	if debitorBalance.LessThan(debit.Amount) {
		return decimal.Zero, apperrors.ErrInsufficientFunds
	}

	// 3. Insert all entries in one batch.
	now := debit.CreatedAt
	batch := &pgx.Batch{}
	batch.Queue(insertEntryQuery,
		debit.EntryID, debit.SessionID, debit.AccountID, debit.Kind, debit.Amount,
		debit.CurrencyCode, debit.MinuteIndex, debit.Memo, debit.CreatedAt,
	)
	for _, c := range credits {
		batch.Queue(insertEntryQuery,
			c.EntryID, c.SessionID, c.AccountID, c.Kind, c.Amount,
			c.CurrencyCode, c.MinuteIndex, c.Memo, c.CreatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return decimal.Zero, apperrors.NewAppError(500, "failed to execute entry batch for debit "+debit.EntryID, err)
	}

	// 4. Apply balance changes.
	changes := map[string]decimal.Decimal{debit.AccountID: debit.Amount.Neg()}
	for _, c := range credits {
		changes[c.AccountID] = changes[c.AccountID].Add(c.Amount)
	}
	if err := applyBalanceChanges(ctx, tx, changes, now); err != nil {
		return decimal.Zero, err
	}

	if err := r.Commit(ctx, tx); err != nil {
		return decimal.Zero, err
	}

	return debitorBalance.Add(changes[debit.AccountID]), nil
}

// AppendCredit writes a standalone credit entry and bumps the account balance.
func (r *PgxLedgerRepository) AppendCredit(ctx context.Context, entry domain.LedgerEntry) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	_, err = tx.Exec(ctx, insertEntryQuery,
		entry.EntryID, entry.SessionID, entry.AccountID, entry.Kind, entry.Amount,
		entry.CurrencyCode, entry.MinuteIndex, entry.Memo, entry.CreatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert credit entry "+entry.EntryID, err)
	}

	if err := applyBalanceChanges(ctx, tx, map[string]decimal.Decimal{entry.AccountID: entry.Signed()}, entry.CreatedAt); err != nil {
		return err
	}

	return r.Commit(ctx, tx)
}

// lockAccountBalances takes row locks on the given accounts and returns their
// pre-transfer balances. Missing accounts yield apperrors.ErrNotFound.
func lockAccountBalances(ctx context.Context, tx pgx.Tx, accountIDs []string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT account_id, balance
		FROM accounts
		WHERE account_id = ANY($1)
		ORDER BY account_id
		FOR UPDATE;
	`
	rows, err := tx.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to lock accounts for update", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal, len(accountIDs))
	for rows.Next() {
		var id string
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan locked account row", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating locked account rows", err)
	}

	for _, id := range accountIDs {
		if _, ok := balances[id]; !ok {
			return nil, apperrors.ErrNotFound
		}
	}
	return balances, nil
}

// applyBalanceChanges applies signed deltas to account balance counters.
func applyBalanceChanges(ctx context.Context, tx pgx.Tx, changes map[string]decimal.Decimal, now time.Time) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2,
		    last_updated_at = $3
		WHERE account_id = $1;
	`
	for accountID, delta := range changes {
		cmdTag, err := tx.Exec(ctx, query, accountID, delta, now)
		if err != nil {
			return apperrors.NewAppError(500, "failed to update balance for account "+accountID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrNotFound
		}
	}
	return nil
}
