package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/slots"
)

// SlotRepository is the slot persistence surface the coordinator needs.
type SlotRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*slots.Slot, error)
	Insert(ctx context.Context, s *slots.Slot) error
	Update(ctx context.Context, s *slots.Slot) error
	ListByBranchDay(ctx context.Context, branchID string, day time.Time) ([]*slots.Slot, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AppointmentRepository is the appointment persistence surface the
// coordinator needs.
type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	GetByReference(ctx context.Context, reference string) (*appointments.Appointment, error)
	Insert(ctx context.Context, a *appointments.Appointment) error
	Update(ctx context.Context, a *appointments.Appointment) error
	GetUserActiveAppointment(ctx context.Context, customerUsername, branchID string, day time.Time) (*appointments.Appointment, error)
	GetUnattendedAppointments(ctx context.Context, before, lookbackFloor time.Time, afterID uuid.UUID, limit int) ([]*appointments.Appointment, error)
	ListByCustomer(ctx context.Context, customerUsername string, limit, offset int) (*appointments.AppointmentPage, error)
}

// OutboxRepository enqueues events inside the same transaction as the state
// change they describe.
type OutboxRepository interface {
	Insert(ctx context.Context, branchID string, eventType string, payload any) (uuid.UUID, error)
}

// Tx groups the repositories bound to one transaction. Everything done
// through a Tx commits or rolls back together.
type Tx interface {
	Slots() SlotRepository
	Appointments() AppointmentRepository
	Outbox() OutboxRepository
}

// Store opens transactions for the coordinator. Implementations may surface
// optimistic-lock conflicts either from repository Update calls or at commit
// time; callers treat both the same way.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
