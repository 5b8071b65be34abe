package appointments

import (
	"time"

	"github.com/google/uuid"
)

// CustomerAction is a closed set of appointment changes a customer may
// request: Cancel and Reschedule. The unexported marker keeps callers from
// defining new variants outside this package.
type CustomerAction interface {
	Apply(a *Appointment) error
	isCustomerAction()
}

// Cancel is the customer cancelling their own appointment.
type Cancel struct {
	Reason string
	At     time.Time
	Window time.Duration
}

func (c Cancel) Apply(a *Appointment) error {
	return a.CancelByCustomer(c.Reason, c.At, c.Window)
}

func (Cancel) isCustomerAction() {}

// Reschedule is the customer moving their appointment to a new slot. Slot
// capacity is exchanged by the coordinator, not here.
type Reschedule struct {
	NewSlotID   uuid.UUID
	NewStartsAt time.Time
	At          time.Time
	Window      time.Duration
}

func (r Reschedule) Apply(a *Appointment) error {
	return a.Reschedule(r.NewSlotID, r.NewStartsAt, r.At, r.Window)
}

func (Reschedule) isCustomerAction() {}

// AttendanceAction is a closed set of branch-side transitions driven by staff
// during the visit.
type AttendanceAction interface {
	Apply(a *Appointment) error
	isAttendanceAction()
}

// CheckIn records the customer's arrival.
type CheckIn struct {
	At time.Time
}

func (c CheckIn) Apply(a *Appointment) error {
	return a.CheckIn(c.At)
}

func (CheckIn) isAttendanceAction() {}

// StartService assigns a consultant and begins the visit.
type StartService struct {
	ConsultantID string
	At           time.Time
}

func (s StartService) Apply(a *Appointment) error {
	return a.StartService(s.ConsultantID, s.At)
}

func (StartService) isAttendanceAction() {}

// Complete closes out the visit with the consultant's notes.
type Complete struct {
	Notes string
	At    time.Time
}

func (c Complete) Apply(a *Appointment) error {
	return a.Complete(c.Notes, c.At)
}

func (Complete) isAttendanceAction() {}

// CancelByStaff is the branch cancelling on the customer's behalf.
type CancelByStaff struct {
	StaffID string
	Reason  string
	At      time.Time
}

func (c CancelByStaff) Apply(a *Appointment) error {
	return a.CancelByStaff(c.StaffID, c.Reason, c.At)
}

func (CancelByStaff) isAttendanceAction() {}
