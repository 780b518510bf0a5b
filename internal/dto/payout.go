package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// PayoutResponse is one payout request in a reader's payout history.
type PayoutResponse struct {
	PayoutID      string          `json:"payoutID"`
	ReaderID      string          `json:"readerID"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
	PeriodStart   time.Time       `json:"periodStart"`
	PeriodEnd     time.Time       `json:"periodEnd"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ToPayoutResponses maps domain payout requests to their response shape.
func ToPayoutResponses(payouts []domain.PayoutRequest) []PayoutResponse {
	out := make([]PayoutResponse, len(payouts))
	for i, p := range payouts {
		out[i] = PayoutResponse{
			PayoutID:      p.PayoutID,
			ReaderID:      p.ReaderID,
			Amount:        p.Amount,
			CurrencyCode:  p.CurrencyCode,
			PeriodStart:   p.PeriodStart,
			PeriodEnd:     p.PeriodEnd,
			Status:        string(p.Status),
			FailureReason: p.FailureReason,
			CreatedAt:     p.CreatedAt,
		}
	}
	return out
}

// PayoutRunSummary reports one scheduler cycle.
type PayoutRunSummary struct {
	ReadersChecked int             `json:"readersChecked"`
	Sent           int             `json:"sent"`
	Failed         int             `json:"failed"`
	Deferred       int             `json:"deferred"` // below threshold or period already covered
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}
