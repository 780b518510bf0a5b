package domain

import "time"

// SlotStatus is the booking state of an availability slot.
type SlotStatus string

const (
	SlotOpen    SlotStatus = "open"
	SlotBooked  SlotStatus = "booked"
	SlotBlocked SlotStatus = "blocked"
)

// AvailabilitySlot is one bookable window in a reader's schedule. For a given
// reader no two booked slots overlap; a slot only moves open->booked->open (on
// cancellation) or open->blocked.
type AvailabilitySlot struct {
	SlotID   string     `json:"slotID"`
	ReaderID string     `json:"readerID"`
	StartsAt time.Time  `json:"startsAt"`
	EndsAt   time.Time  `json:"endsAt"`
	Timezone string     `json:"timezone"`
	Status   SlotStatus `json:"status"`
	AuditFields
}

// Covers reports whether the slot window contains the given instant.
func (s AvailabilitySlot) Covers(at time.Time) bool {
	return !at.Before(s.StartsAt) && at.Before(s.EndsAt)
}
