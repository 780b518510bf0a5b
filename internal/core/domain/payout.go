package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus tracks a payout request through disbursement.
type PayoutStatus string

const (
	PayoutScheduled PayoutStatus = "scheduled"
	PayoutSent      PayoutStatus = "sent"
	PayoutFailed    PayoutStatus = "failed"
)

// PayoutRequest aggregates a reader's available credit into one transfer handed
// to the external disbursement collaborator. Amount never exceeds the reader's
// available balance at request time.
type PayoutRequest struct {
	PayoutID      string          `json:"payoutID"`
	ReaderID      string          `json:"readerID"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
	PeriodStart   time.Time       `json:"periodStart"`
	PeriodEnd     time.Time       `json:"periodEnd"`
	Status        PayoutStatus    `json:"status"`
	FailureReason string          `json:"failureReason,omitempty"`
	TransferRef   string          `json:"transferRef,omitempty"` // external transfer id once sent
	AuditFields
}

// IdempotencyKey identifies the (reader, period) pair towards the disbursement
// collaborator so a re-run cannot double-pay.
func (p PayoutRequest) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%s", p.ReaderID, p.PeriodStart.UTC().Format("20060102"), p.PeriodEnd.UTC().Format("20060102"))
}
