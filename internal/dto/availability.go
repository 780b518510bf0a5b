package dto

import (
	"time"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// SlotRequest is one availability window in a reader's schedule update.
type SlotRequest struct {
	StartsAt time.Time `json:"startsAt" binding:"required"`
	EndsAt   time.Time `json:"endsAt" binding:"required"`
	Timezone string    `json:"timezone"`
}

// SetAvailabilityRequest replaces a reader's future open slots.
type SetAvailabilityRequest struct {
	Slots []SlotRequest `json:"slots" binding:"required,min=1,dive"`
}

// SlotResponse is one slot in an availability listing.
type SlotResponse struct {
	SlotID   string    `json:"slotID"`
	ReaderID string    `json:"readerID"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Timezone string    `json:"timezone"`
	Status   string    `json:"status"`
}

// ToSlotResponses maps domain slots to their response shape.
func ToSlotResponses(slots []domain.AvailabilitySlot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = SlotResponse{
			SlotID:   s.SlotID,
			ReaderID: s.ReaderID,
			StartsAt: s.StartsAt,
			EndsAt:   s.EndsAt,
			Timezone: s.Timezone,
			Status:   string(s.Status),
		}
	}
	return out
}
