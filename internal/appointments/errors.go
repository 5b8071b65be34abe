package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when no appointment matches the lookup.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidAppointment is returned when appointment fields fail validation.
	ErrInvalidAppointment = errors.New("invalid appointment")

	// ErrInvalidStateTransition is returned for a transition the current
	// status does not permit.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrWindowClosed is returned when a cancellation or reschedule arrives
	// inside the cutoff window before slot start.
	ErrWindowClosed = errors.New("modification window closed")

	// ErrRescheduleLimit is returned once the lifetime reschedule cap is hit.
	ErrRescheduleLimit = errors.New("reschedule limit reached")

	// ErrSameSlot is returned when a reschedule targets the current slot.
	ErrSameSlot = errors.New("cannot reschedule to the same slot")

	// ErrInvalidActorID is returned for blank or out-of-range staff and
	// consultant identifiers.
	ErrInvalidActorID = errors.New("invalid actor id")

	// ErrInvalidReason is returned for blank or oversized cancellation reasons.
	ErrInvalidReason = errors.New("invalid reason")

	// ErrInvalidNotes is returned for blank or oversized consultant notes.
	ErrInvalidNotes = errors.New("invalid notes")

	// ErrInvalidReference is returned when a booking reference fails the
	// APT-YYYY-NNNNNNN shape check.
	ErrInvalidReference = errors.New("invalid booking reference")

	// ErrReferenceGeneration is returned when the reference sequence is
	// exhausted or produces an oversized reference.
	ErrReferenceGeneration = errors.New("booking reference generation failed")

	// ErrVersionConflict is returned when an optimistic-lock update loses the
	// race against a concurrent writer.
	ErrVersionConflict = errors.New("appointment was modified concurrently")

	// ErrDuplicateActiveAppointment is returned when the customer already has
	// an active appointment at the branch on the same day.
	ErrDuplicateActiveAppointment = errors.New("customer already has an active appointment for this branch and day")
)
