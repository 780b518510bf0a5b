package dto

import (
	"encoding/json"
	"time"
)

// EventType is the message family on the signaling channel.
type EventType string

const (
	EventChat        EventType = "chat"
	EventControl     EventType = "control"
	EventNegotiation EventType = "negotiation"
)

// Control subtypes carried on EventControl messages.
const (
	ControlReady             = "ready"
	ControlEnd               = "end"
	ControlHeartbeat         = "heartbeat"
	ControlLowBalanceWarning = "low_balance_warning"
	ControlSessionEnded      = "session_ended"
)

// EventEnvelope is the JSON wire shape on the signaling channel.
// Chat events carry Content; control events carry Subtype (and optionally Data);
// negotiation events carry an opaque Payload relayed untouched.
type EventEnvelope struct {
	Type    EventType       `json:"type"`
	From    string          `json:"from,omitempty"`
	Subtype string          `json:"subtype,omitempty"`
	Content string          `json:"content,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    map[string]any  `json:"data,omitempty"`
	SentAt  time.Time       `json:"sentAt,omitempty"`
}

// ControlEvent is a server-pushed control message handed to the signaling layer
// by the registry and billing monitor.
type ControlEvent struct {
	Subtype string
	Data    map[string]any
}
