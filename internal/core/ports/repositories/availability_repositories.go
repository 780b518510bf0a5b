package repositories

import (
	"context"
	"time"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// AvailabilityRepositoryFacade persists reader availability slots.
type AvailabilityRepositoryFacade interface {
	// ReplaceOpenSlots drops the reader's future open slots and inserts the given
	// ones. Booked and blocked slots are left untouched. Overlapping new slots
	// are rejected with apperrors.ErrConflict.
	ReplaceOpenSlots(ctx context.Context, readerID string, slots []domain.AvailabilitySlot) error

	// ListSlots returns the reader's slots intersecting [from, to), ordered by start.
	ListSlots(ctx context.Context, readerID string, from, to time.Time) ([]domain.AvailabilitySlot, error)

	// FindOpenSlotAt returns an open slot of the reader covering the given instant,
	// or apperrors.ErrNotFound.
	FindOpenSlotAt(ctx context.Context, readerID string, at time.Time) (*domain.AvailabilitySlot, error)

	// UpdateSlotStatus moves a slot from one status to another as a compare-and-set.
	// A slot no longer in the expected status yields apperrors.ErrConflict.
	UpdateSlotStatus(ctx context.Context, slotID string, from, to domain.SlotStatus) error
}
