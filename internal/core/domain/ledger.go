package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry's effect on the account balance.
type EntryKind string

const (
	EntryDebit  EntryKind = "DEBIT"
	EntryCredit EntryKind = "CREDIT"
	EntryPayout EntryKind = "PAYOUT"
)

// Signed returns the entry amount with the sign it contributes to the account
// balance: credits add, debits and payouts subtract.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Kind == EntryCredit {
		return e.Amount
	}
	return e.Amount.Neg()
}

// LedgerEntry is an immutable record of a balance-affecting event. Entries are
// append-only; once written they are never updated or deleted.
type LedgerEntry struct {
	EntryID      string          `json:"entryID"`
	SessionID    *string         `json:"sessionID,omitempty"` // nil for non-session events (deposits, payouts)
	AccountID    string          `json:"accountID"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"` // always positive; Kind carries the sign
	CurrencyCode string          `json:"currencyCode"`
	MinuteIndex  *int64          `json:"minuteIndex,omitempty"` // billing tick ordinal, nil otherwise
	Memo         string          `json:"memo,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AccountKind distinguishes the three account populations the engine settles between.
type AccountKind string

const (
	AccountClient   AccountKind = "CLIENT"
	AccountReader   AccountKind = "READER"
	AccountPlatform AccountKind = "PLATFORM"
)

// Account is a balance-bearing party. Balance is a durable counter updated
// atomically with entry insertion; it always equals the signed sum of the
// account's entries.
type Account struct {
	AccountID    string          `json:"accountID"`
	Kind         AccountKind     `json:"kind"`
	CurrencyCode string          `json:"currencyCode"`
	Balance      decimal.Decimal `json:"balance"`
	AuditFields
}

// AccountBalance is the read model pair used by the payout scheduler.
type AccountBalance struct {
	AccountID string          `json:"accountID"`
	Balance   decimal.Decimal `json:"balance"`
}
