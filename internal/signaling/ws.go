package signaling

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/dto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8 * 1024
)

// Transport upgrades HTTP requests to WebSocket connections and pumps events
// between the socket and the hub.
type Transport struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewTransport creates the WebSocket transport for the hub.
func NewTransport(hub *Hub, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement is handled by the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve joins the participant to the session channel and runs the read and
// write pumps until the connection or the channel dies. It blocks for the
// lifetime of the connection.
func (t *Transport) Serve(w http.ResponseWriter, r *http.Request, sessionID, participantID string) error {
	client, err := t.hub.Join(sessionID, participantID)
	if err != nil {
		return err
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.hub.Leave(client)
		return err
	}

	go t.writePump(conn, client)
	t.readPump(conn, client)
	return nil
}

// readPump decodes inbound envelopes and hands them to the hub. It exits on
// connection close, which detaches the participant and reports them offline.
func (t *Transport) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		t.hub.Leave(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMsgSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := t.hub.loggerFor(client.SessionID, client.ParticipantID)
	for {
		var env dto.EventEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Debug("WebSocket read failed",
					slog.String("session_id", client.SessionID),
					slog.String("participant_id", client.ParticipantID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		// Application-level heartbeats double as read deadline refreshes.
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := t.hub.Receive(ctx, client, env); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// Session ended under us; the close event is already queued.
				return
			}
			t.logger.Warn("Inbound event rejected",
				slog.String("session_id", client.SessionID),
				slog.String("participant_id", client.ParticipantID),
				slog.String("event_type", string(env.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// writePump drains the participant's outbound queue onto the socket and keeps
// the connection alive with pings. The hub closing the queue closes the socket.
func (t *Transport) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-client.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
