package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// availabilityService manages a reader's bookable schedule.
type availabilityService struct {
	availabilityRepo portsrepo.AvailabilityRepositoryFacade
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(availabilityRepo portsrepo.AvailabilityRepositoryFacade) portssvc.AvailabilitySvcFacade {
	return &availabilityService{availabilityRepo: availabilityRepo}
}

var _ portssvc.AvailabilitySvcFacade = (*availabilityService)(nil)

// SetSlots replaces the reader's future open slots with the given windows.
// Booked and blocked slots survive; a new window colliding with one of them is
// rejected with apperrors.ErrConflict.
func (s *availabilityService) SetSlots(ctx context.Context, readerID string, req dto.SetAvailabilityRequest) ([]domain.AvailabilitySlot, error) {
	now := time.Now().UTC()
	slots := make([]domain.AvailabilitySlot, 0, len(req.Slots))
	for _, in := range req.Slots {
		if !in.EndsAt.After(in.StartsAt) {
			return nil, apperrors.ErrValidation
		}
		if in.EndsAt.Before(now) {
			return nil, apperrors.ErrValidation
		}
		tz := in.Timezone
		if tz == "" {
			tz = "UTC"
		} else if _, err := time.LoadLocation(tz); err != nil {
			return nil, apperrors.ErrValidation
		}
		slots = append(slots, domain.AvailabilitySlot{
			SlotID:   uuid.NewString(),
			ReaderID: readerID,
			StartsAt: in.StartsAt.UTC(),
			EndsAt:   in.EndsAt.UTC(),
			Timezone: tz,
			Status:   domain.SlotOpen,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				LastUpdatedAt: now,
			},
		})
	}

	if err := s.availabilityRepo.ReplaceOpenSlots(ctx, readerID, slots); err != nil {
		return nil, err
	}

	middleware.GetLoggerFromCtx(ctx).Info("Availability replaced",
		slog.String("reader_id", readerID),
		slog.Int("slot_count", len(slots)),
	)
	return slots, nil
}

// ListSlots returns the reader's slots within [from, to).
func (s *availabilityService) ListSlots(ctx context.Context, readerID string, from, to time.Time) ([]domain.AvailabilitySlot, error) {
	if !to.After(from) {
		return nil, apperrors.ErrValidation
	}
	return s.availabilityRepo.ListSlots(ctx, readerID, from, to)
}
