package slots

import "errors"

var (
	// ErrSlotNotFound is returned when a slot id resolves to nothing.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotExpired is returned when mutating an expired slot.
	ErrSlotExpired = errors.New("slot is expired")

	// ErrSlotBlocked is returned when booking or re-blocking a blocked slot.
	ErrSlotBlocked = errors.New("slot is blocked")

	// ErrSlotNotBlocked is returned when unblocking a slot that is not blocked.
	ErrSlotNotBlocked = errors.New("slot is not blocked")

	// ErrSlotTimeElapsed is returned when mutating a slot at or after its start time.
	ErrSlotTimeElapsed = errors.New("slot time has elapsed")

	// ErrFullyBooked is returned when booking a slot at max capacity.
	ErrFullyBooked = errors.New("slot is fully booked")

	// ErrNothingToRelease is returned when releasing a slot with zero bookings.
	ErrNothingToRelease = errors.New("no bookings to release")

	// ErrInvalidSlot is returned for malformed slot attributes.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrVersionConflict is returned when a compare-and-swap write loses a race.
	ErrVersionConflict = errors.New("slot version conflict")
)
