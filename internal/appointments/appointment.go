package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusBooked      Status = "BOOKED"
	StatusCheckedIn   Status = "CHECKED_IN"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
	StatusRescheduled Status = "RESCHEDULED"
)

// TerminationReason records why an appointment reached a terminal state.
type TerminationReason string

const (
	ReasonCustomerCancellation TerminationReason = "CUSTOMER_CANCELLATION"
	ReasonStaffCancellation    TerminationReason = "STAFF_CANCELLATION"
	ReasonCustomerNoShow       TerminationReason = "CUSTOMER_NO_SHOW"
	ReasonCustomerRescheduled  TerminationReason = "CUSTOMER_RESCHEDULED"
)

const (
	// MinBookingAdvance is the minimum lead time between booking and slot start.
	MinBookingAdvance = 60 * time.Minute

	// DefaultCancellationWindow is the minimum lead time to cancel or
	// reschedule. The coordinator may pass a different window from config.
	DefaultCancellationWindow = 120 * time.Minute

	// DefaultGraceWindow is the advisory on-time check-in period after slot
	// start. It never gates the check-in transition.
	DefaultGraceWindow = 5 * time.Minute

	// MaxRescheduleCount caps how often one appointment can move slots.
	MaxRescheduleCount = 3

	// SystemSchedulerActor is recorded as the terminator for sweep-driven
	// no-show transitions.
	SystemSchedulerActor = "SYSTEM_SCHEDULER"
)

// Appointment is one customer's claim against a slot. It carries its own
// lifecycle, synchronized with the slot's capacity accounting by the booking
// coordinator; it never holds a live slot reference.
type Appointment struct {
	ID               uuid.UUID
	SlotID           uuid.UUID
	PreviousSlotID   uuid.UUID // set only after a reschedule
	BranchID         string
	CustomerUsername string
	ServiceType      string
	Status           Status
	Reference        string
	StartsAt         time.Time // the referenced slot's start time
	Version          int

	CreatedAt    time.Time
	UpdatedAt    time.Time
	CheckedInAt  *time.Time
	InProgressAt *time.Time
	CompletedAt  *time.Time
	TerminatedAt *time.Time

	TerminatedBy      string
	TerminationReason TerminationReason
	TerminationNotes  string

	AssignedConsultantID string
	ServiceNotes         string

	RescheduleCount int
}

// New creates a BOOKED appointment against the given slot. The booking
// reference must already be generated; see FormatReference.
func New(slotID uuid.UUID, branchID, customerUsername, serviceType, reference string, startsAt, now time.Time) (*Appointment, error) {
	if slotID == uuid.Nil {
		return nil, fmt.Errorf("appointments: %w: slot id is required", ErrInvalidAppointment)
	}
	if err := validateBranchID(branchID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(customerUsername) == "" {
		return nil, fmt.Errorf("appointments: %w: customer username is required", ErrInvalidAppointment)
	}
	if err := validateServiceType(serviceType); err != nil {
		return nil, err
	}
	if err := ValidateReference(reference); err != nil {
		return nil, err
	}
	if !startsAt.After(now) {
		return nil, fmt.Errorf("appointments: %w: appointment time %s is not in the future", ErrInvalidAppointment, startsAt.Format(time.RFC3339))
	}

	return &Appointment{
		ID:               uuid.New(),
		SlotID:           slotID,
		BranchID:         branchID,
		CustomerUsername: customerUsername,
		ServiceType:      serviceType,
		Status:           StatusBooked,
		Reference:        reference,
		StartsAt:         startsAt.UTC(),
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

// Day is the calendar day of the referenced slot, used for the
// one-active-appointment-per-branch-per-day rule.
func (a *Appointment) Day() time.Time {
	return a.StartsAt.UTC().Truncate(24 * time.Hour)
}

// IsTerminal reports whether the appointment reached the end of its life.
func (a *Appointment) IsTerminal() bool {
	switch a.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether the appointment still occupies slot capacity.
func (a *Appointment) IsActive() bool {
	return !a.IsTerminal()
}

// CheckIn moves BOOKED to CHECKED_IN. Whether the customer arrived inside the
// grace window is advisory reporting metadata, not a gate.
func (a *Appointment) CheckIn(now time.Time) error {
	if a.Status != StatusBooked {
		return a.transitionError("check in", StatusBooked)
	}
	ts := now.UTC()
	a.Status = StatusCheckedIn
	a.CheckedInAt = &ts
	a.UpdatedAt = ts
	return nil
}

// StartService moves CHECKED_IN to IN_PROGRESS and assigns the consultant.
func (a *Appointment) StartService(consultantID string, now time.Time) error {
	if err := validateActorID(consultantID, "consultant id"); err != nil {
		return err
	}
	if a.Status != StatusCheckedIn {
		return a.transitionError("start service", StatusCheckedIn)
	}
	ts := now.UTC()
	a.Status = StatusInProgress
	a.AssignedConsultantID = consultantID
	a.InProgressAt = &ts
	a.UpdatedAt = ts
	return nil
}

// Complete moves IN_PROGRESS to COMPLETED with the consultant's notes.
// Slot capacity is not released on completion; the visit happened.
func (a *Appointment) Complete(consultantNotes string, now time.Time) error {
	if strings.TrimSpace(consultantNotes) == "" {
		return fmt.Errorf("appointments: %w: consultant notes cannot be blank", ErrInvalidNotes)
	}
	if len(consultantNotes) > 1000 {
		return fmt.Errorf("appointments: %w: consultant notes cannot exceed 1000 characters", ErrInvalidNotes)
	}
	if a.Status != StatusInProgress {
		return a.transitionError("complete", StatusInProgress)
	}
	ts := now.UTC()
	a.Status = StatusCompleted
	a.ServiceNotes = consultantNotes
	a.CompletedAt = &ts
	a.UpdatedAt = ts
	return nil
}

// CancelByCustomer cancels a BOOKED or CHECKED_IN appointment, gated by the
// cancellation window before slot start.
func (a *Appointment) CancelByCustomer(reason string, now time.Time, window time.Duration) error {
	if err := validateReason(reason); err != nil {
		return err
	}
	if !a.CanBeCancelledByCustomer(now, window) {
		return fmt.Errorf("appointments: %w: cancellation closes %s before the %s start",
			ErrWindowClosed, window, a.StartsAt.Format(time.RFC3339))
	}
	if a.Status != StatusBooked && a.Status != StatusCheckedIn {
		return a.transitionError("cancel", StatusBooked, StatusCheckedIn)
	}
	a.terminate(a.CustomerUsername, ReasonCustomerCancellation, reason, now)
	return nil
}

// CancelByStaff cancels on behalf of the branch. Staff may cancel at any time
// while the appointment is still BOOKED, CHECKED_IN, or IN_PROGRESS.
func (a *Appointment) CancelByStaff(staffID, reason string, now time.Time) error {
	if err := validateActorID(staffID, "staff id"); err != nil {
		return err
	}
	if err := validateReason(reason); err != nil {
		return err
	}
	switch a.Status {
	case StatusBooked, StatusCheckedIn, StatusInProgress:
	default:
		return a.transitionError("cancel", StatusBooked, StatusCheckedIn, StatusInProgress)
	}
	a.terminate(staffID, ReasonStaffCancellation, reason, now)
	return nil
}

// MarkAsNoShow terminates an unattended BOOKED or CHECKED_IN appointment.
func (a *Appointment) MarkAsNoShow(now time.Time) error {
	if a.Status != StatusBooked && a.Status != StatusCheckedIn {
		return a.transitionError("mark as no-show", StatusBooked, StatusCheckedIn)
	}
	a.terminate(SystemSchedulerActor, ReasonCustomerNoShow, "", now)
	return nil
}

// Reschedule moves a BOOKED appointment to a different slot, gated by the
// reschedule window and the lifetime reschedule cap.
func (a *Appointment) Reschedule(newSlotID uuid.UUID, newStartsAt, now time.Time, window time.Duration) error {
	if newSlotID == uuid.Nil {
		return fmt.Errorf("appointments: %w: new slot id is required", ErrInvalidAppointment)
	}
	if newStartsAt.Before(now) {
		return fmt.Errorf("appointments: %w: new appointment time %s is in the past", ErrInvalidAppointment, newStartsAt.Format(time.RFC3339))
	}
	if !a.CanBeRescheduled(now, window) {
		return fmt.Errorf("appointments: %w: rescheduling closes %s before the %s start",
			ErrWindowClosed, window, a.StartsAt.Format(time.RFC3339))
	}
	if a.RescheduleCount >= MaxRescheduleCount {
		return fmt.Errorf("appointments: %w: limit of %d reached, book a new appointment", ErrRescheduleLimit, MaxRescheduleCount)
	}
	if a.Status != StatusBooked {
		return a.transitionError("reschedule", StatusBooked)
	}
	if newSlotID == a.SlotID {
		return fmt.Errorf("appointments: %w: new slot must differ from current slot %s", ErrSameSlot, a.SlotID)
	}

	a.PreviousSlotID = a.SlotID
	a.SlotID = newSlotID
	a.StartsAt = newStartsAt.UTC()
	a.RescheduleCount++
	a.UpdatedAt = now.UTC()
	return nil
}

// CanBeCancelledByCustomer reports whether now is still outside the
// cancellation window before slot start.
func (a *Appointment) CanBeCancelledByCustomer(now time.Time, window time.Duration) bool {
	deadline := a.StartsAt.Add(-window)
	return now.Before(deadline)
}

// CanBeRescheduled shares the cancellation window rule.
func (a *Appointment) CanBeRescheduled(now time.Time, window time.Duration) bool {
	return a.CanBeCancelledByCustomer(now, window)
}

// WithinGraceWindow reports whether a check-in at now counts as on time.
// Advisory metadata for reporting only.
func (a *Appointment) WithinGraceWindow(now time.Time, grace time.Duration) bool {
	diff := now.Sub(a.StartsAt)
	return diff >= 0 && diff <= grace
}

// IsRescheduled reports whether the appointment ever moved slots.
func (a *Appointment) IsRescheduled() bool {
	return a.PreviousSlotID != uuid.Nil
}

func (a *Appointment) terminate(actor string, reason TerminationReason, notes string, now time.Time) {
	ts := now.UTC()
	switch reason {
	case ReasonCustomerNoShow:
		a.Status = StatusNoShow
	default:
		a.Status = StatusCancelled
	}
	a.TerminatedBy = actor
	a.TerminationReason = reason
	a.TerminationNotes = notes
	a.TerminatedAt = &ts
	a.UpdatedAt = ts
}

func (a *Appointment) transitionError(action string, allowed ...Status) error {
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Errorf("appointments: %w: cannot %s from %s, requires %s",
		ErrInvalidStateTransition, action, a.Status, strings.Join(names, " or "))
}

// Clone returns a deep copy for in-memory stores.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	cp.CheckedInAt = cloneTime(a.CheckedInAt)
	cp.InProgressAt = cloneTime(a.InProgressAt)
	cp.CompletedAt = cloneTime(a.CompletedAt)
	cp.TerminatedAt = cloneTime(a.TerminatedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func validateBranchID(branchID string) error {
	if strings.TrimSpace(branchID) == "" {
		return fmt.Errorf("appointments: %w: branch id is required", ErrInvalidAppointment)
	}
	if len(branchID) < 2 || len(branchID) > 50 {
		return fmt.Errorf("appointments: %w: branch id must be between 2 and 50 characters", ErrInvalidAppointment)
	}
	return nil
}

func validateServiceType(serviceType string) error {
	if strings.TrimSpace(serviceType) == "" {
		return fmt.Errorf("appointments: %w: service type is required", ErrInvalidAppointment)
	}
	if len(serviceType) < 3 || len(serviceType) > 100 {
		return fmt.Errorf("appointments: %w: service type must be between 3 and 100 characters", ErrInvalidAppointment)
	}
	return nil
}

func validateActorID(id, field string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("appointments: %w: %s cannot be blank", ErrInvalidActorID, field)
	}
	if len(id) < 2 || len(id) > 50 {
		return fmt.Errorf("appointments: %w: %s must be between 2 and 50 characters", ErrInvalidActorID, field)
	}
	return nil
}

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("appointments: %w: reason cannot be blank", ErrInvalidReason)
	}
	if len(reason) > 500 {
		return fmt.Errorf("appointments: %w: reason cannot exceed 500 characters", ErrInvalidReason)
	}
	return nil
}
