package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names carried in outbox rows. Versioned so consumers can
// survive payload evolution.
const (
	TypeAppointmentBookedV1       = "appointment.booked.v1"
	TypeAppointmentStateChangedV1 = "appointment.state_changed.v1"
)

// Trigger identifies who drove a state change.
type Trigger string

const (
	TriggerCustomer Trigger = "CUSTOMER"
	TriggerStaff    Trigger = "STAFF"
	TriggerSystem   Trigger = "SYSTEM"
)

// AppointmentBookedV1 is emitted when a booking commits.
type AppointmentBookedV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	BranchID      string    `json:"branch_id"`
	Customer      string    `json:"customer"`
	Reference     string    `json:"reference"`
	ServiceType   string    `json:"service_type"`
	StartsAt      time.Time `json:"starts_at"`
	BookedAt      time.Time `json:"booked_at"`
}

// AppointmentStateChangedV1 is emitted for every lifecycle transition after
// booking, including reschedules and sweep-driven no-shows.
type AppointmentStateChangedV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	BranchID      string    `json:"branch_id"`
	Customer      string    `json:"customer"`
	Reference     string    `json:"reference"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Trigger       Trigger   `json:"trigger"`
	Actor         string    `json:"actor,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
