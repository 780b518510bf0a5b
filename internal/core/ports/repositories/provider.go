package repositories

// RepositoryProvider bundles all repository facades for injection into services.
type RepositoryProvider struct {
	LedgerRepo       LedgerRepositoryFacade
	AvailabilityRepo AvailabilityRepositoryFacade
	SessionRepo      SessionArchiveRepositoryFacade
	PayoutRepo       PayoutRepositoryFacade
}
