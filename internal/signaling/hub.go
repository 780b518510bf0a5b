package signaling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// outboundQueueSize bounds each participant's send queue. A slow consumer
// loses messages rather than stalling the session.
const outboundQueueSize = 64

// serverSender marks server-originated control events on the wire.
const serverSender = "server"

// Client is one participant's live attachment to a session channel. The
// transport drains Outbound; the hub owns closing it.
type Client struct {
	SessionID     string
	ParticipantID string

	outbound chan dto.EventEnvelope
	once     sync.Once
}

// Outbound is the participant's ordered queue of events to deliver.
func (c *Client) Outbound() <-chan dto.EventEnvelope {
	return c.outbound
}

func (c *Client) close() {
	c.once.Do(func() { close(c.outbound) })
}

// sessionChannel is the relay state for one session.
type sessionChannel struct {
	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// Hub relays signaling events between the two participants of each session.
// It owns connection bookkeeping only; session lifecycle decisions stay with
// the registry, which the hub informs through presence callbacks.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*sessionChannel

	registry portssvc.SessionRegistrySvcFacade
	logger   *slog.Logger
}

// NewHub creates a signaling hub bound to the session registry.
func NewHub(registry portssvc.SessionRegistrySvcFacade, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		channels: make(map[string]*sessionChannel),
		registry: registry,
		logger:   logger,
	}
}

var _ portssvc.SessionNotifier = (*Hub)(nil)

// Join attaches a participant to the session channel. Only the session's
// client or reader may join; a second connection for the same participant
// replaces the first. The returned Client's outbound queue is live until the
// connection is replaced or the session ends.
func (h *Hub) Join(sessionID, participantID string) (*Client, error) {
	clientID, readerID, err := h.registry.Participants(sessionID)
	if err != nil {
		return nil, err
	}
	if participantID != clientID && participantID != readerID {
		return nil, apperrors.ErrUnauthorized
	}

	h.mu.Lock()
	ch, ok := h.channels[sessionID]
	created := !ok
	if created {
		ch = &sessionChannel{clients: make(map[string]*Client)}
		h.channels[sessionID] = ch
	}
	h.mu.Unlock()

	if created {
		// The session can terminate between the participant check and the channel
		// insert; CloseSession ran too early to see the new channel. The registry
		// forgets the session before the channel teardown, so a second check
		// catches the race.
		if _, _, err := h.registry.Participants(sessionID); err != nil {
			h.CloseSession(sessionID)
			return nil, apperrors.ErrNotFound
		}
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil, apperrors.ErrNotFound
	}
	if old, ok := ch.clients[participantID]; ok {
		old.close()
	}
	client := &Client{
		SessionID:     sessionID,
		ParticipantID: participantID,
		outbound:      make(chan dto.EventEnvelope, outboundQueueSize),
	}
	ch.clients[participantID] = client
	ch.mu.Unlock()

	h.registry.HandlePresence(sessionID, participantID, true)
	h.logger.Debug("Participant joined signaling channel",
		slog.String("session_id", sessionID),
		slog.String("participant_id", participantID),
	)
	return client, nil
}

// Leave detaches a participant. Only the current attachment counts; a stale
// client replaced by a reconnect is ignored. The registry is told the
// participant went offline so it can arm the disconnect grace timer.
func (h *Hub) Leave(client *Client) {
	h.mu.RLock()
	ch, ok := h.channels[client.SessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	current := ch.clients[client.ParticipantID] == client
	if current {
		delete(ch.clients, client.ParticipantID)
	}
	ch.mu.Unlock()

	client.close()
	if current {
		h.registry.HandlePresence(client.SessionID, client.ParticipantID, false)
		h.logger.Debug("Participant left signaling channel",
			slog.String("session_id", client.SessionID),
			slog.String("participant_id", client.ParticipantID),
		)
	}
}

// Receive handles one inbound event from a participant. Chat and negotiation
// events relay to the other participant untouched; control events drive the
// registry. Events on a closed or unknown channel are rejected.
func (h *Hub) Receive(ctx context.Context, client *Client, env dto.EventEnvelope) error {
	env.From = client.ParticipantID
	env.SentAt = time.Now().UTC()

	switch env.Type {
	case dto.EventChat, dto.EventNegotiation:
		return h.relay(client.SessionID, client.ParticipantID, env)
	case dto.EventControl:
		return h.handleControl(ctx, client, env)
	default:
		return apperrors.ErrValidation
	}
}

func (h *Hub) handleControl(ctx context.Context, client *Client, env dto.EventEnvelope) error {
	switch env.Subtype {
	case dto.ControlReady:
		if _, err := h.registry.MarkReady(ctx, client.SessionID, client.ParticipantID); err != nil {
			return err
		}
		return h.relay(client.SessionID, client.ParticipantID, env)
	case dto.ControlEnd:
		// Terminate closes the channel and pushes session_ended to both sides.
		return h.registry.Terminate(ctx, client.SessionID, domain.ReasonCompleted)
	case dto.ControlHeartbeat:
		h.registry.HandlePresence(client.SessionID, client.ParticipantID, true)
		return nil
	default:
		return apperrors.ErrValidation
	}
}

// relay delivers an event to the other participant of the session, if
// connected. Delivery never blocks; a full queue drops the event.
func (h *Hub) relay(sessionID, from string, env dto.EventEnvelope) error {
	h.mu.RLock()
	ch, ok := h.channels[sessionID]
	h.mu.RUnlock()
	if !ok {
		return apperrors.ErrNotFound
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return apperrors.ErrNotFound
	}
	for id, peer := range ch.clients {
		if id == from {
			continue
		}
		h.enqueue(peer, env)
	}
	return nil
}

// PublishControl fans a server control event out to every connected
// participant of the session. It never blocks on delivery.
func (h *Hub) PublishControl(sessionID string, event dto.ControlEvent) {
	h.mu.RLock()
	ch, ok := h.channels[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	env := dto.EventEnvelope{
		Type:    dto.EventControl,
		From:    serverSender,
		Subtype: event.Subtype,
		Data:    event.Data,
		SentAt:  time.Now().UTC(),
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	for _, peer := range ch.clients {
		h.enqueue(peer, env)
	}
}

// CloseSession tears down the signaling channel for a terminated session.
// Pending outbound events still drain to the transports; further joins and
// sends are rejected.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	ch, ok := h.channels[sessionID]
	if ok {
		delete(h.channels, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	ch.closed = true
	for _, client := range ch.clients {
		client.close()
	}
	ch.clients = make(map[string]*Client)
	ch.mu.Unlock()

	h.logger.Debug("Signaling channel closed", slog.String("session_id", sessionID))
}

func (h *Hub) enqueue(client *Client, env dto.EventEnvelope) {
	select {
	case client.outbound <- env:
	default:
		h.logger.Warn("Outbound queue full, dropping event",
			slog.String("session_id", client.SessionID),
			slog.String("participant_id", client.ParticipantID),
			slog.String("event_type", string(env.Type)),
		)
	}
}

// loggerFor builds a context carrying session attributes for registry calls
// made on behalf of a transport goroutine.
func (h *Hub) loggerFor(sessionID, participantID string) context.Context {
	return middleware.ContextWithLogger(context.Background(), h.logger.With(
		slog.String("session_id", sessionID),
		slog.String("participant_id", participantID),
	))
}
