package booking

import "errors"

var (
	// ErrConcurrentModification is returned when an operation keeps losing
	// optimistic-lock races after retries are exhausted.
	ErrConcurrentModification = errors.New("booking was modified concurrently, please retry")

	// ErrDuplicateActiveBooking is returned when the customer already holds
	// an active appointment at the branch for the same day.
	ErrDuplicateActiveBooking = errors.New("customer already has an active booking for this branch and day")

	// ErrBookingTooSoon is returned when the slot starts inside the minimum
	// advance window.
	ErrBookingTooSoon = errors.New("slot starts too soon to book")
)
