package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/middleware"
	"github.com/soulsight/soulsight_backend/internal/signaling"
)

// wsHandler upgrades signaling connections for live sessions.
type wsHandler struct {
	transport *signaling.Transport
}

func newWSHandler(transport *signaling.Transport) *wsHandler {
	return &wsHandler{transport: transport}
}

// registerWSRoutes registers the signaling WebSocket route.
func registerWSRoutes(rg *gin.RouterGroup, transport *signaling.Transport) {
	h := newWSHandler(transport)

	rg.GET("/sessions/:sessionID/ws", h.serveWS)
}

func (h *wsHandler) serveWS(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionID := c.Param("sessionID")
	participantID := c.Query("participant")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'participant' query parameter"})
		return
	}

	err := h.transport.Serve(c.Writer, c.Request, sessionID, participantID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, apperrors.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this session"})
		default:
			// The upgrade already wrote the handshake failure to the connection.
			logger.Warn("WebSocket session ended with error",
				slog.String("session_id", sessionID),
				slog.String("participant_id", participantID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
}
