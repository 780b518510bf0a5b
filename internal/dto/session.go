package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// CreateSessionRequest books a session for immediate start.
type CreateSessionRequest struct {
	ClientID      string          `json:"clientID" binding:"required"`
	ReaderID      string          `json:"readerID" binding:"required"`
	Modality      domain.Modality `json:"modality" binding:"required,oneof=chat video audio"`
	RatePerMinute decimal.Decimal `json:"ratePerMinute" binding:"required"`
}

// ReadyRequest marks one participant ready. Idempotent per participant.
type ReadyRequest struct {
	ParticipantID string `json:"participantID" binding:"required"`
}

// EndSessionRequest gracefully ends a session from either side.
type EndSessionRequest struct {
	ParticipantID string `json:"participantID" binding:"required"`
}

// GiftRequest transfers a virtual gift from the session's client to its reader,
// out of band of the per-minute billing.
type GiftRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,decimalgt0"`
	Memo   string          `json:"memo"`
}

// SessionResponse is the snapshot shape returned by session endpoints.
type SessionResponse struct {
	SessionID          string          `json:"sessionID"`
	ClientID           string          `json:"clientID"`
	ReaderID           string          `json:"readerID"`
	Modality           domain.Modality `json:"modality"`
	RatePerMinute      decimal.Decimal `json:"ratePerMinute"`
	CurrencyCode       string          `json:"currencyCode"`
	State              string          `json:"state"`
	StartedAt          *time.Time      `json:"startedAt,omitempty"`
	LastBilledAt       *time.Time      `json:"lastBilledAt,omitempty"`
	EndedAt            *time.Time      `json:"endedAt,omitempty"`
	AccumulatedMinutes int64           `json:"accumulatedMinutesBilled"`
	TerminationReason  string          `json:"terminationReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// ToSessionResponse maps a domain session to its response shape. The internal
// system-fault reason is reported generically.
func ToSessionResponse(s *domain.ReadingSession) SessionResponse {
	resp := SessionResponse{
		SessionID:          s.SessionID,
		ClientID:           s.ClientID,
		ReaderID:           s.ReaderID,
		Modality:           s.Modality,
		RatePerMinute:      s.RatePerMinute,
		CurrencyCode:       s.CurrencyCode,
		State:              string(s.State),
		StartedAt:          s.StartedAt,
		LastBilledAt:       s.LastBilledAt,
		EndedAt:            s.EndedAt,
		AccumulatedMinutes: s.AccumulatedMinutes,
		CreatedAt:          s.CreatedAt,
	}
	if s.TerminationReason != nil {
		resp.TerminationReason = s.TerminationReason.Public()
	}
	return resp
}
