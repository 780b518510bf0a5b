package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Modality is the medium of a reading session. It is fixed at creation and
// determines the per-minute rate.
type Modality string

const (
	ModalityChat  Modality = "chat"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// SessionState is the state-machine state of a reading session.
type SessionState string

const (
	StatePending           SessionState = "pending"
	StateActive            SessionState = "active"
	StateCompleted         SessionState = "completed"
	StateInsufficientFunds SessionState = "insufficient_funds"
	StateDisconnected      SessionState = "disconnected"
	StateCancelled         SessionState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateInsufficientFunds, StateDisconnected, StateCancelled:
		return true
	}
	return false
}

// TerminationReason records why a session entered a terminal state. Set once.
type TerminationReason string

const (
	ReasonCompleted         TerminationReason = "completed"
	ReasonInsufficientFunds TerminationReason = "insufficient_funds"
	ReasonDisconnected      TerminationReason = "disconnected"
	ReasonCancelled         TerminationReason = "cancelled"
	// ReasonSystemFault marks a session ended by a storage fault. Internally it is
	// tracked separately from a genuine balance failure; externally it surfaces as a
	// generic session end.
	ReasonSystemFault TerminationReason = "system_fault"
)

// State returns the terminal state a termination reason maps to.
func (r TerminationReason) State() SessionState {
	switch r {
	case ReasonCompleted:
		return StateCompleted
	case ReasonInsufficientFunds, ReasonSystemFault:
		return StateInsufficientFunds
	case ReasonDisconnected:
		return StateDisconnected
	case ReasonCancelled:
		return StateCancelled
	}
	return StateCancelled
}

// Public returns the reason string exposed to end users. Internal fault detail is
// never put on the wire.
func (r TerminationReason) Public() string {
	if r == ReasonSystemFault {
		return "ended"
	}
	return string(r)
}

// validTransitions is the authoritative transition table. Terminal states have no
// outgoing edges.
var validTransitions = map[SessionState][]SessionState{
	StatePending: {StateActive, StateCancelled},
	StateActive:  {StateCompleted, StateInsufficientFunds, StateDisconnected},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to SessionState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReadingSession is one live metered interaction between a client and a reader.
type ReadingSession struct {
	SessionID          string             `json:"sessionID"`
	ClientID           string             `json:"clientID"`
	ReaderID           string             `json:"readerID"`
	Modality           Modality           `json:"modality"`
	RatePerMinute      decimal.Decimal    `json:"ratePerMinute"` // charged per whole minute, >= 0
	CurrencyCode       string             `json:"currencyCode"`
	State              SessionState       `json:"state"`
	SlotID             string             `json:"slotID,omitempty"` // availability slot held for this session
	StartedAt          *time.Time         `json:"startedAt,omitempty"`
	LastBilledAt       *time.Time         `json:"lastBilledAt,omitempty"` // advances only on successful debit
	EndedAt            *time.Time         `json:"endedAt,omitempty"`
	AccumulatedMinutes int64              `json:"accumulatedMinutesBilled"` // monotonically non-decreasing
	TerminationReason  *TerminationReason `json:"terminationReason,omitempty"`
	AuditFields
}
