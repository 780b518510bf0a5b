package handlers

import (
	"github.com/gin-gonic/gin"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/middleware"
	"github.com/soulsight/soulsight_backend/internal/platform/config"
	"github.com/soulsight/soulsight_backend/internal/signaling"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	transport *signaling.Transport,
) {
	RegisterCustomValidators()

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, cfg, services, transport)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	transport *signaling.Transport,
) {
	v1 := r.Group("/api/v1")

	rate, err := limiter.NewRateFromFormatted(cfg.SessionCreateRateLimit)
	if err != nil {
		// Misconfigured limits fall back to a safe default rather than
		// disabling the limiter.
		rate, _ = limiter.NewRateFromFormatted("10-M")
	}
	limiterInstance := limiter.New(memory.NewStore(), rate)
	rateLimit := middleware.RateLimit(limiterInstance)

	RegisterSessionRoutes(v1, services.Registry, rateLimit)
	registerWSRoutes(v1, transport)
	registerAccountRoutes(v1, services.Ledger)

	readers := v1.Group("/readers")
	registerAvailabilityRoutes(readers, services.Availability)
	registerPayoutRoutes(readers, services.Payout)
}
