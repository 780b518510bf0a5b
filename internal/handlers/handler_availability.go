package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// defaultAvailabilityWindow bounds a listing when no range is given.
const defaultAvailabilityWindow = 7 * 24 * time.Hour

// availabilityHandler handles HTTP requests for reader schedules.
type availabilityHandler struct {
	availabilitySvc portssvc.AvailabilitySvcFacade
}

func newAvailabilityHandler(availabilitySvc portssvc.AvailabilitySvcFacade) *availabilityHandler {
	return &availabilityHandler{availabilitySvc: availabilitySvc}
}

// registerAvailabilityRoutes registers schedule routes on the readers group.
func registerAvailabilityRoutes(readers *gin.RouterGroup, availabilitySvc portssvc.AvailabilitySvcFacade) {
	h := newAvailabilityHandler(availabilitySvc)

	readers.PUT("/:readerID/availability", h.setAvailability)
	readers.GET("/:readerID/availability", h.getAvailability)
}

func (h *availabilityHandler) setAvailability(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	readerID := c.Param("readerID")

	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for SetAvailability", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	slots, err := h.availabilitySvc.SetSlots(c.Request.Context(), readerID, req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid slot windows"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Slots overlap an existing booking"})
		default:
			logger.Error("Failed to set availability", slog.String("reader_id", readerID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set availability"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": dto.ToSlotResponses(slots)})
}

func (h *availabilityHandler) getAvailability(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	readerID := c.Param("readerID")

	now := time.Now().UTC()
	from := now
	to := now.Add(defaultAvailabilityWindow)

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp, expected RFC3339"})
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp, expected RFC3339"})
			return
		}
		to = t
	}

	slots, err := h.availabilitySvc.ListSlots(c.Request.Context(), readerID, from, to)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must be after 'from'"})
			return
		}
		logger.Error("Failed to list availability", slog.String("reader_id", readerID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve availability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": dto.ToSlotResponses(slots)})
}
