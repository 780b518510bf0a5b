package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// sessionHandler handles HTTP requests related to reading sessions.
type sessionHandler struct {
	registry portssvc.SessionRegistrySvcFacade
}

func newSessionHandler(registry portssvc.SessionRegistrySvcFacade) *sessionHandler {
	return &sessionHandler{registry: registry}
}

// RegisterSessionRoutes registers routes related to sessions. Creation sits
// behind the rate limiter.
func RegisterSessionRoutes(rg *gin.RouterGroup, registry portssvc.SessionRegistrySvcFacade, rateLimit gin.HandlerFunc) {
	h := newSessionHandler(registry)

	sessions := rg.Group("/sessions")
	{
		sessions.POST("", rateLimit, h.createSession)
		sessions.POST("/:sessionID/ready", h.markReady)
		sessions.POST("/:sessionID/end", h.endSession)
		sessions.GET("/:sessionID", h.getSession)
		sessions.POST("/:sessionID/gift", h.sendGift)
	}
}

func (h *sessionHandler) createSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateSession", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	session, err := h.registry.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, apperrors.ErrReaderUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "Reader is not available"})
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient balance for the first minute"})
		default:
			logger.Error("Failed to create session", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.ToSessionResponse(session))
}

func (h *sessionHandler) markReady(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionID := c.Param("sessionID")

	var req dto.ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	session, err := h.registry.MarkReady(c.Request.Context(), sessionID, req.ParticipantID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, apperrors.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this session"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Session is not accepting ready signals"})
		default:
			logger.Error("Failed to mark ready", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark ready"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

func (h *sessionHandler) endSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionID := c.Param("sessionID")

	var req dto.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	clientID, readerID, err := h.registry.Participants(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if req.ParticipantID != clientID && req.ParticipantID != readerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this session"})
		return
	}

	if err := h.registry.Terminate(c.Request.Context(), sessionID, domain.ReasonCompleted); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Session cannot be ended from its current state"})
		default:
			logger.Error("Failed to end session", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *sessionHandler) getSession(c *gin.Context) {
	sessionID := c.Param("sessionID")

	session, err := h.registry.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Failed to get session",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

func (h *sessionHandler) sendGift(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionID := c.Param("sessionID")

	var req dto.GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	// The registry checks the session state and writes the ledger entries under
	// the session's lock, so the gift cannot land after a concurrent Terminate.
	if err := h.registry.Gift(c.Request.Context(), sessionID, req.Amount, req.Memo); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Gifts require an active session"})
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient balance for this gift"})
		default:
			logger.Error("Failed to send gift", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send gift"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}
