package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// DefaultCurrency is the only currency the platform settles in.
// Multi-currency conversion is out of scope.
const DefaultCurrency = "USD"
