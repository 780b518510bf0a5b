package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/dto"
)

// SessionRegistrySvcFacade is the authoritative owner of live session state.
// All state transitions funnel through it; everything else refers to sessions
// by id only.
type SessionRegistrySvcFacade interface {
	// Create validates reader availability, books the covering slot and returns a
	// session in pending state. Fails with apperrors.ErrReaderUnavailable when the
	// reader has no open slot for immediate start or is already in a live session.
	Create(ctx context.Context, req dto.CreateSessionRequest) (*domain.ReadingSession, error)

	// MarkReady records a participant's ready signal. Idempotent per participant;
	// once both have signalled, the session transitions to active and billing starts.
	MarkReady(ctx context.Context, sessionID, participantID string) (*domain.ReadingSession, error)

	// Terminate moves the session to the terminal state matching reason. When it
	// returns, the session's billing monitor has stopped and no further ledger
	// writes for this session can occur.
	Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error

	// Get returns a snapshot of the session, or apperrors.ErrNotFound when the id
	// is unknown or the session has been archived.
	Get(ctx context.Context, sessionID string) (*domain.ReadingSession, error)

	// Gift transfers a virtual gift from the session's client to its reader,
	// split like any other session revenue. The active-state check and the
	// ledger write happen under the session's lock, so a gift can never land
	// after Terminate has returned. Fails with apperrors.ErrConflict when the
	// session is not active.
	Gift(ctx context.Context, sessionID string, amount decimal.Decimal, memo string) error

	// Participants returns the client and reader ids of a live session.
	Participants(sessionID string) (clientID, readerID string, err error)

	// HandlePresence is called by the signaling layer when a participant's
	// connection state changes. Going offline while active arms the disconnect
	// grace timer; coming back online disarms it.
	HandlePresence(sessionID, participantID string, online bool)

	// Shutdown terminates all live sessions (used on process exit).
	Shutdown(ctx context.Context)
}

// SessionNotifier is the registry's outbound interface to the signaling layer.
// The registry pushes session lifecycle events through it; it never blocks on
// delivery.
type SessionNotifier interface {
	// PublishControl fans a server control event out to both participants.
	PublishControl(sessionID string, event dto.ControlEvent)

	// CloseSession tears down the signaling channel for a terminated session so
	// late joins and sends are rejected.
	CloseSession(sessionID string)
}
