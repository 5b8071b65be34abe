package slots

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a slot.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBooked    Status = "BOOKED"
	StatusBlocked   Status = "BLOCKED"
	StatusExpired   Status = "EXPIRED"
)

// Slot is a bounded-capacity time bucket at a branch. Capacity and status are
// kept as separate fields: BLOCKED and EXPIRED are administrative overrides
// that must survive booking-count changes.
type Slot struct {
	ID           uuid.UUID
	BranchID     string
	Day          time.Time
	Start        time.Time
	End          time.Time
	MaxCapacity  int
	BookingCount int
	Status       Status
	Version      int
}

// New creates an AVAILABLE slot with zero bookings. Version starts at zero and
// is managed by the persistence layer.
func New(branchID string, day, start, end time.Time, maxCapacity int) (*Slot, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return nil, fmt.Errorf("slots: %w: branch id is required", ErrInvalidSlot)
	}
	if len(branchID) < 2 || len(branchID) > 50 {
		return nil, fmt.Errorf("slots: %w: branch id must be between 2 and 50 characters", ErrInvalidSlot)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("slots: %w: start %s must be strictly before end %s", ErrInvalidSlot, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if maxCapacity <= 0 {
		return nil, fmt.Errorf("slots: %w: max capacity must be greater than zero", ErrInvalidSlot)
	}

	return &Slot{
		ID:          uuid.New(),
		BranchID:    branchID,
		Day:         day.UTC().Truncate(24 * time.Hour),
		Start:       start.UTC(),
		End:         end.UTC(),
		MaxCapacity: maxCapacity,
		Status:      StatusAvailable,
	}, nil
}

// Reconstitute rebuilds a slot from persisted state and re-checks the
// capacity/status invariants so corrupted rows surface at load time.
func Reconstitute(id uuid.UUID, branchID string, day, start, end time.Time, maxCapacity, bookingCount int, status Status, version int) (*Slot, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("slots: %w: id is required", ErrInvalidSlot)
	}
	if strings.TrimSpace(branchID) == "" {
		return nil, fmt.Errorf("slots: %w: branch id is required", ErrInvalidSlot)
	}
	s := &Slot{
		ID:           id,
		BranchID:     branchID,
		Day:          day,
		Start:        start,
		End:          end,
		MaxCapacity:  maxCapacity,
		BookingCount: bookingCount,
		Status:       status,
		Version:      version,
	}
	if err := s.checkInvariants(); err != nil {
		return nil, err
	}
	return s, nil
}

// Book claims one unit of capacity. Reaching max capacity flips the slot to
// BOOKED.
func (s *Slot) Book(now time.Time) error {
	if s.Status == StatusExpired {
		return fmt.Errorf("slots: %w", ErrSlotExpired)
	}
	if s.Status == StatusBlocked {
		return fmt.Errorf("slots: %w", ErrSlotBlocked)
	}
	if err := s.ensureNotStarted(now); err != nil {
		return err
	}
	if s.BookingCount >= s.MaxCapacity {
		return fmt.Errorf("slots: %w", ErrFullyBooked)
	}

	s.BookingCount++
	if s.BookingCount == s.MaxCapacity {
		s.Status = StatusBooked
	}
	return nil
}

// Release returns one unit of capacity. A BOOKED slot reverts to AVAILABLE; a
// BLOCKED slot stays BLOCKED regardless of count.
func (s *Slot) Release(now time.Time) error {
	if err := s.ensureNotStarted(now); err != nil {
		return err
	}
	return s.decrement()
}

// ReleaseElapsed returns capacity for a slot whose start time has already
// passed. The no-show sweep and post-start staff cancellations take this
// path; customer-facing release goes through Release.
func (s *Slot) ReleaseElapsed() error {
	return s.decrement()
}

func (s *Slot) decrement() error {
	if s.BookingCount == 0 {
		return fmt.Errorf("slots: %w", ErrNothingToRelease)
	}
	s.BookingCount--
	if s.Status == StatusBooked && s.BookingCount < s.MaxCapacity {
		s.Status = StatusAvailable
	}
	return nil
}

// Block stops further bookings. Bookings already made are preserved.
func (s *Slot) Block(now time.Time) error {
	if s.Status == StatusBlocked {
		return fmt.Errorf("slots: %w: slot is already blocked", ErrSlotBlocked)
	}
	if s.Status == StatusExpired {
		return fmt.Errorf("slots: %w", ErrSlotExpired)
	}
	if err := s.ensureNotStarted(now); err != nil {
		return err
	}
	s.Status = StatusBlocked
	return nil
}

// Unblock resolves the status from the current booking count.
func (s *Slot) Unblock(now time.Time) error {
	if s.Status != StatusBlocked {
		return fmt.Errorf("slots: %w: slot is not blocked", ErrSlotNotBlocked)
	}
	if err := s.ensureNotStarted(now); err != nil {
		return err
	}
	if s.BookingCount == s.MaxCapacity {
		s.Status = StatusBooked
	} else {
		s.Status = StatusAvailable
	}
	return nil
}

// Expire is an idempotent monotone transition to EXPIRED. A fully booked slot
// is never silently expired; its appointments govern its fate.
func (s *Slot) Expire() {
	if s.Status == StatusAvailable || s.Status == StatusBlocked {
		s.Status = StatusExpired
	}
}

// HasAvailableCapacity reports whether a new booking could claim this slot.
func (s *Slot) HasAvailableCapacity() bool {
	return s.Status == StatusAvailable && s.BookingCount < s.MaxCapacity
}

// Duration is the scheduled length of the slot.
func (s *Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s *Slot) ensureNotStarted(now time.Time) error {
	if !now.Before(s.Start) {
		return fmt.Errorf("slots: %w: slot started at %s", ErrSlotTimeElapsed, s.Start.Format(time.RFC3339))
	}
	return nil
}

func (s *Slot) checkInvariants() error {
	if s.MaxCapacity <= 0 {
		return fmt.Errorf("slots: %w: max capacity must be greater than zero", ErrInvalidSlot)
	}
	if s.BookingCount < 0 || s.BookingCount > s.MaxCapacity {
		return fmt.Errorf("slots: %w: booking count %d outside 0..%d for slot %s", ErrInvalidSlot, s.BookingCount, s.MaxCapacity, s.ID)
	}
	if s.Status == StatusBooked && s.BookingCount < s.MaxCapacity {
		return fmt.Errorf("slots: %w: slot %s is BOOKED but not full (%d/%d)", ErrInvalidSlot, s.ID, s.BookingCount, s.MaxCapacity)
	}
	if s.Status == StatusAvailable && s.BookingCount >= s.MaxCapacity {
		return fmt.Errorf("slots: %w: slot %s is AVAILABLE but full (%d/%d)", ErrInvalidSlot, s.ID, s.BookingCount, s.MaxCapacity)
	}
	return nil
}

// Clone returns a deep copy, used by in-memory stores to avoid sharing
// mutable state across transaction boundaries.
func (s *Slot) Clone() *Slot {
	cp := *s
	return &cp
}
