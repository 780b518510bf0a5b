package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// payoutHandler handles HTTP requests for payout history.
type payoutHandler struct {
	payoutSvc portssvc.PayoutSvcFacade
}

func newPayoutHandler(payoutSvc portssvc.PayoutSvcFacade) *payoutHandler {
	return &payoutHandler{payoutSvc: payoutSvc}
}

// registerPayoutRoutes registers payout routes on the readers group.
func registerPayoutRoutes(readers *gin.RouterGroup, payoutSvc portssvc.PayoutSvcFacade) {
	h := newPayoutHandler(payoutSvc)

	readers.GET("/:readerID/payouts", h.listPayouts)
}

func (h *payoutHandler) listPayouts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	readerID := c.Param("readerID")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit'"})
			return
		}
		limit = n
	}

	payouts, err := h.payoutSvc.ListByReader(c.Request.Context(), readerID, limit)
	if err != nil {
		logger.Error("Failed to list payouts", slog.String("reader_id", readerID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve payouts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": dto.ToPayoutResponses(payouts)})
}
