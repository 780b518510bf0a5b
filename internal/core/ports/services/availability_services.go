package services

import (
	"context"
	"time"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/dto"
)

// AvailabilitySvcFacade manages a reader's bookable schedule.
type AvailabilitySvcFacade interface {
	// SetSlots replaces the reader's future open slots.
	SetSlots(ctx context.Context, readerID string, req dto.SetAvailabilityRequest) ([]domain.AvailabilitySlot, error)

	// ListSlots returns the reader's slots within [from, to).
	ListSlots(ctx context.Context, readerID string, from, to time.Time) ([]domain.AvailabilitySlot, error)
}
