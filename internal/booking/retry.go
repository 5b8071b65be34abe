package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/slots"
)

const maxRetries = 3

// isVersionConflict reports whether err is an optimistic-lock loss from
// either aggregate.
func isVersionConflict(err error) bool {
	return errors.Is(err, slots.ErrVersionConflict) || errors.Is(err, appointments.ErrVersionConflict)
}

// withRetry re-runs fn on version conflicts. Each attempt re-reads current
// state inside a fresh transaction, so a retry observes the winner's writes.
// Exhausted retries surface as ErrConcurrentModification.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = fn(); err == nil || !isVersionConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("booking: %w: %v", ErrConcurrentModification, err)
}
