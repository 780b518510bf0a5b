package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// DepositRequest records a credit confirmed by the external payment gateway.
// Card tokenization and capture happen outside this system.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,decimalgt0"`
	Memo   string          `json:"memo"`
}

// BalanceResponse is the balance read model for an account.
type BalanceResponse struct {
	AccountID    string          `json:"accountID"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currencyCode"`
}

// EntryResponse is one ledger entry in an account statement.
type EntryResponse struct {
	EntryID      string          `json:"entryID"`
	SessionID    *string         `json:"sessionID,omitempty"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	Memo         string          `json:"memo,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ToEntryResponses maps domain entries to their response shape.
func ToEntryResponses(entries []domain.LedgerEntry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = EntryResponse{
			EntryID:      e.EntryID,
			SessionID:    e.SessionID,
			Kind:         string(e.Kind),
			Amount:       e.Amount,
			CurrencyCode: e.CurrencyCode,
			Memo:         e.Memo,
			CreatedAt:    e.CreatedAt,
		}
	}
	return out
}
