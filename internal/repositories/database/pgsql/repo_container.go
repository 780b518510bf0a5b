package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	ledgerRepo := newPgxLedgerRepository(dbPool)
	availabilityRepo := newPgxAvailabilityRepository(dbPool)
	sessionRepo := newPgxSessionRepository(dbPool)
	payoutRepo := newPgxPayoutRepository(dbPool)

	return portsrepo.RepositoryProvider{
		LedgerRepo:       ledgerRepo,
		AvailabilityRepo: availabilityRepo,
		SessionRepo:      sessionRepo,
		PayoutRepo:       payoutRepo,
	}
}
