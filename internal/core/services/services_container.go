package services

import (
	"log/slog"

	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized
// dependencies. The returned registry still needs its signaling notifier wired
// via SetNotifier before sessions are created.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, disburser portssvc.Disburser, baseLogger *slog.Logger) (*portssvc.ServiceContainer, *sessionRegistry) {
	container := &portssvc.ServiceContainer{}

	container.Ledger = NewLedgerService(repos.LedgerRepo, cfg.ReaderSharePercent, cfg.PlatformAccountID)
	container.Availability = NewAvailabilityService(repos.AvailabilityRepo)
	container.Payout = NewPayoutService(repos.PayoutRepo, repos.LedgerRepo, disburser, cfg.MinPayoutAmount)

	registry := NewSessionRegistry(
		container.Ledger,
		repos.LedgerRepo,
		repos.AvailabilityRepo,
		repos.SessionRepo,
		RegistryConfig{
			BillingInterval:       cfg.BillingInterval,
			ReadyWaitTimeout:      cfg.ReadyWaitTimeout,
			DisconnectGracePeriod: cfg.DisconnectGracePeriod,
			LowBalanceThreshold:   cfg.LowBalanceThreshold,
		},
		baseLogger,
	)
	container.Registry = registry

	return container, registry
}
