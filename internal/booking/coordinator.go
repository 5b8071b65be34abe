package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/events"
	"github.com/mashudu-n/branch-appointments/internal/observability/metrics"
	"github.com/mashudu-n/branch-appointments/internal/slots"
	"github.com/mashudu-n/branch-appointments/pkg/logging"
)

var bookingTracer = otel.Tracer("branch.internal.booking")

// Config carries the temporal rules the coordinator enforces.
type Config struct {
	// MinAdvance is the minimum lead time between booking and slot start.
	MinAdvance time.Duration
	// CancelWindow is the cutoff before slot start for customer
	// cancellations and reschedules.
	CancelWindow time.Duration
	// GraceWindow is the advisory on-time check-in period after slot start.
	GraceWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinAdvance <= 0 {
		c.MinAdvance = appointments.MinBookingAdvance
	}
	if c.CancelWindow <= 0 {
		c.CancelWindow = appointments.DefaultCancellationWindow
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = appointments.DefaultGraceWindow
	}
	return c
}

// Coordinator is the single write path for bookings. Every operation runs in
// one transaction that touches the slot, the appointment, and the outbox
// together, so capacity accounting never drifts from appointment state.
type Coordinator struct {
	store    Store
	sequence appointments.Sequence
	cfg      Config
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

// NewCoordinator constructs the coordinator. Metrics may be nil.
func NewCoordinator(store Store, sequence appointments.Sequence, cfg Config, logger *logging.Logger, m *metrics.BookingMetrics) *Coordinator {
	if store == nil {
		panic("booking: store required")
	}
	if sequence == nil {
		panic("booking: reference sequence required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		store:    store,
		sequence: sequence,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	if now != nil {
		c.now = now
	}
	return c
}

// CreateBookingInput identifies the slot to claim. Branch, day, and start
// time all come from the slot row; the caller cannot contradict them.
type CreateBookingInput struct {
	SlotID           uuid.UUID
	CustomerUsername string
	ServiceType      string
}

// CreateBooking claims slot capacity and creates a BOOKED appointment with a
// fresh booking reference, atomically.
func (c *Coordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (*appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("branch.slot_id", in.SlotID.String()),
		attribute.String("branch.customer", in.CustomerUsername),
	)
	start := c.now()

	var appt *appointments.Appointment
	err := withRetry(ctx, func() error {
		appt = nil
		return c.store.InTx(ctx, func(tx Tx) error {
			slot, err := tx.Slots().Get(ctx, in.SlotID)
			if err != nil {
				return err
			}
			now := c.now()
			if slot.Start.Sub(now) < c.cfg.MinAdvance {
				return fmt.Errorf("booking: %w: slot starts at %s, minimum advance is %s",
					ErrBookingTooSoon, slot.Start.Format(time.RFC3339), c.cfg.MinAdvance)
			}

			if _, err := tx.Appointments().GetUserActiveAppointment(ctx, in.CustomerUsername, slot.BranchID, slot.Day); err == nil {
				return fmt.Errorf("booking: %w", ErrDuplicateActiveBooking)
			} else if !errors.Is(err, appointments.ErrAppointmentNotFound) {
				return err
			}

			if err := slot.Book(now); err != nil {
				return err
			}
			if err := tx.Slots().Update(ctx, slot); err != nil {
				return err
			}

			seq, err := c.sequence.Next(ctx, slot.Start.Year())
			if err != nil {
				return err
			}
			ref, err := appointments.FormatReference(slot.Start.Year(), seq)
			if err != nil {
				return err
			}

			a, err := appointments.New(slot.ID, slot.BranchID, in.CustomerUsername, in.ServiceType, ref, slot.Start, now)
			if err != nil {
				return err
			}
			if err := tx.Appointments().Insert(ctx, a); err != nil {
				if errors.Is(err, appointments.ErrDuplicateActiveAppointment) {
					return fmt.Errorf("booking: %w", ErrDuplicateActiveBooking)
				}
				return err
			}

			if _, err := tx.Outbox().Insert(ctx, a.BranchID, events.TypeAppointmentBookedV1, events.AppointmentBookedV1{
				AppointmentID: a.ID,
				SlotID:        a.SlotID,
				BranchID:      a.BranchID,
				Customer:      a.CustomerUsername,
				Reference:     a.Reference,
				ServiceType:   a.ServiceType,
				StartsAt:      a.StartsAt,
				BookedAt:      a.CreatedAt,
			}); err != nil {
				return err
			}
			appt = a
			return nil
		})
	})
	c.observe("book", start, err, span)
	if err != nil {
		return nil, err
	}
	c.logger.Info("appointment booked",
		"appointment_id", appt.ID, "slot_id", appt.SlotID,
		"branch_id", appt.BranchID, "reference", appt.Reference)
	span.SetAttributes(attribute.String("branch.reference", appt.Reference))
	return appt, nil
}

// Cancel is the customer cancelling their own appointment. Slot capacity is
// released in the same transaction.
func (c *Coordinator) Cancel(ctx context.Context, appointmentID uuid.UUID, reason string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			now := c.now()
			from := a.Status
			action := appointments.Cancel{Reason: reason, At: now, Window: c.cfg.CancelWindow}
			if err := action.Apply(a); err != nil {
				return err
			}

			slot, err := tx.Slots().Get(ctx, a.SlotID)
			if err != nil {
				return err
			}
			if err := slot.Release(now); err != nil {
				return err
			}
			if err := tx.Slots().Update(ctx, slot); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, from, events.TriggerCustomer, a.CustomerUsername, reason, now)
		})
	})
	c.observeTransition("cancel", start, err, span)
	return err
}

// CheckIn records the customer's arrival at the branch. Arrivals outside the
// grace window still check in; on-time is reporting metadata.
func (c *Coordinator) CheckIn(ctx context.Context, appointmentID uuid.UUID) error {
	ctx, span := bookingTracer.Start(ctx, "booking.check_in")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			now := c.now()
			from := a.Status
			if err := (appointments.CheckIn{At: now}).Apply(a); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			c.logger.Info("customer checked in",
				"appointment_id", a.ID, "reference", a.Reference,
				"on_time", a.WithinGraceWindow(now, c.cfg.GraceWindow))
			return c.emitStateChange(ctx, tx, a, from, events.TriggerStaff, "", "", now)
		})
	})
	c.observeTransition("check_in", start, err, span)
	return err
}

// StartService begins the visit and assigns the consultant.
func (c *Coordinator) StartService(ctx context.Context, appointmentID uuid.UUID, consultantID string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.start_service")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			now := c.now()
			from := a.Status
			if err := (appointments.StartService{ConsultantID: consultantID, At: now}).Apply(a); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, from, events.TriggerStaff, consultantID, "", now)
		})
	})
	c.observeTransition("start_service", start, err, span)
	return err
}

// Complete closes out the visit. Capacity is not released; the slot was used.
func (c *Coordinator) Complete(ctx context.Context, appointmentID uuid.UUID, consultantNotes string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.complete")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			now := c.now()
			from := a.Status
			if err := (appointments.Complete{Notes: consultantNotes, At: now}).Apply(a); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, from, events.TriggerStaff, a.AssignedConsultantID, "", now)
		})
	})
	c.observeTransition("complete", start, err, span)
	return err
}

// CancelByStaff cancels on behalf of the branch at any point before the
// appointment terminates, releasing slot capacity.
func (c *Coordinator) CancelByStaff(ctx context.Context, appointmentID uuid.UUID, staffID, reason string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel_by_staff")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			now := c.now()
			from := a.Status
			if err := (appointments.CancelByStaff{StaffID: staffID, Reason: reason, At: now}).Apply(a); err != nil {
				return err
			}

			slot, err := tx.Slots().Get(ctx, a.SlotID)
			if err != nil {
				return err
			}
			if now.Before(slot.Start) {
				err = slot.Release(now)
			} else {
				err = slot.ReleaseElapsed()
			}
			if err != nil {
				return err
			}
			if err := tx.Slots().Update(ctx, slot); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, from, events.TriggerStaff, staffID, reason, now)
		})
	})
	c.observeTransition("cancel_by_staff", start, err, span)
	return err
}

// Reschedule moves an appointment to a new slot: capacity on the new slot is
// claimed and capacity on the old slot released in one transaction, so a
// failure on either side leaves both slots untouched.
func (c *Coordinator) Reschedule(ctx context.Context, appointmentID, newSlotID uuid.UUID) error {
	ctx, span := bookingTracer.Start(ctx, "booking.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("branch.new_slot_id", newSlotID.String()))
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			newSlot, err := tx.Slots().Get(ctx, newSlotID)
			if err != nil {
				return err
			}
			now := c.now()
			if newSlot.Start.Sub(now) < c.cfg.MinAdvance {
				return fmt.Errorf("booking: %w: slot starts at %s, minimum advance is %s",
					ErrBookingTooSoon, newSlot.Start.Format(time.RFC3339), c.cfg.MinAdvance)
			}

			oldSlotID := a.SlotID
			action := appointments.Reschedule{
				NewSlotID:   newSlotID,
				NewStartsAt: newSlot.Start,
				At:          now,
				Window:      c.cfg.CancelWindow,
			}
			if err := action.Apply(a); err != nil {
				return err
			}

			if err := newSlot.Book(now); err != nil {
				return err
			}
			oldSlot, err := tx.Slots().Get(ctx, oldSlotID)
			if err != nil {
				return err
			}
			if err := oldSlot.Release(now); err != nil {
				return err
			}

			if err := tx.Slots().Update(ctx, newSlot); err != nil {
				return err
			}
			if err := tx.Slots().Update(ctx, oldSlot); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, appointments.StatusBooked, events.TriggerCustomer,
				a.CustomerUsername, string(appointments.ReasonCustomerRescheduled), now)
		})
	})
	c.observeTransition("reschedule", start, err, span)
	return err
}

// MarkNoShow terminates an unattended appointment and returns its slot
// capacity. Already-terminal appointments are a no-op, which makes the sweep
// idempotent.
func (c *Coordinator) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) error {
	ctx, span := bookingTracer.Start(ctx, "booking.mark_no_show")
	defer span.End()
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			a, err := tx.Appointments().Get(ctx, appointmentID)
			if err != nil {
				return err
			}
			if a.IsTerminal() {
				return nil
			}
			now := c.now()
			from := a.Status
			if err := a.MarkAsNoShow(now); err != nil {
				return err
			}

			slot, err := tx.Slots().Get(ctx, a.SlotID)
			if err != nil {
				return err
			}
			if err := slot.ReleaseElapsed(); err != nil {
				return err
			}
			if err := tx.Slots().Update(ctx, slot); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
			return c.emitStateChange(ctx, tx, a, from, events.TriggerSystem, appointments.SystemSchedulerActor, "", now)
		})
	})
	c.observeTransition("no_show", start, err, span)
	return err
}

// ApplySlotTransition runs one administrative slot change (block, unblock,
// release, expire) under the usual optimistic-lock retry.
func (c *Coordinator) ApplySlotTransition(ctx context.Context, t slots.Transition) error {
	ctx, span := bookingTracer.Start(ctx, "booking.slot_transition")
	defer span.End()
	span.SetAttributes(attribute.String("branch.slot_id", t.SlotID().String()))
	start := c.now()

	err := withRetry(ctx, func() error {
		return c.store.InTx(ctx, func(tx Tx) error {
			slot, err := tx.Slots().Get(ctx, t.SlotID())
			if err != nil {
				return err
			}
			if err := t.Apply(slot); err != nil {
				return err
			}
			return tx.Slots().Update(ctx, slot)
		})
	})
	c.observeTransition("slot_transition", start, err, span)
	return err
}

// GetAppointment fetches one appointment by id.
func (c *Coordinator) GetAppointment(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error) {
	var out *appointments.Appointment
	err := c.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Appointments().Get(ctx, id)
		out = a
		return err
	})
	return out, err
}

// GetAppointmentByReference fetches one appointment by booking reference.
func (c *Coordinator) GetAppointmentByReference(ctx context.Context, reference string) (*appointments.Appointment, error) {
	var out *appointments.Appointment
	err := c.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Appointments().GetByReference(ctx, reference)
		out = a
		return err
	})
	return out, err
}

// GetActiveAppointment returns the customer's active appointment at the
// branch on the given day.
func (c *Coordinator) GetActiveAppointment(ctx context.Context, customerUsername, branchID string, day time.Time) (*appointments.Appointment, error) {
	var out *appointments.Appointment
	err := c.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Appointments().GetUserActiveAppointment(ctx, customerUsername, branchID, day)
		out = a
		return err
	})
	return out, err
}

// ListCustomerAppointments pages through a customer's booking history.
func (c *Coordinator) ListCustomerAppointments(ctx context.Context, customerUsername string, limit, offset int) (*appointments.AppointmentPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var out *appointments.AppointmentPage
	err := c.store.InTx(ctx, func(tx Tx) error {
		page, err := tx.Appointments().ListByCustomer(ctx, customerUsername, limit, offset)
		out = page
		return err
	})
	return out, err
}

// ListDaySlots returns a branch's slots for a day, ordered by start time.
func (c *Coordinator) ListDaySlots(ctx context.Context, branchID string, day time.Time) ([]*slots.Slot, error) {
	var out []*slots.Slot
	err := c.store.InTx(ctx, func(tx Tx) error {
		list, err := tx.Slots().ListByBranchDay(ctx, branchID, day)
		out = list
		return err
	})
	return out, err
}

// ListUnattended returns one sweep batch of appointments whose start passed
// without attendance, cursored by id.
func (c *Coordinator) ListUnattended(ctx context.Context, before, lookbackFloor time.Time, afterID uuid.UUID, limit int) ([]*appointments.Appointment, error) {
	var out []*appointments.Appointment
	err := c.store.InTx(ctx, func(tx Tx) error {
		list, err := tx.Appointments().GetUnattendedAppointments(ctx, before, lookbackFloor, afterID, limit)
		out = list
		return err
	})
	return out, err
}

// ExpirePastSlots retires AVAILABLE and BLOCKED slots from days before the
// cutoff and reports how many rows changed.
func (c *Coordinator) ExpirePastSlots(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := c.store.InTx(ctx, func(tx Tx) error {
		count, err := tx.Slots().ExpireBefore(ctx, cutoff)
		n = count
		return err
	})
	if err == nil {
		c.metrics.AddSlotsExpired(n)
	}
	return n, err
}

func (c *Coordinator) emitStateChange(ctx context.Context, tx Tx, a *appointments.Appointment, from appointments.Status, trigger events.Trigger, actor, reason string, now time.Time) error {
	_, err := tx.Outbox().Insert(ctx, a.BranchID, events.TypeAppointmentStateChangedV1, events.AppointmentStateChangedV1{
		AppointmentID: a.ID,
		SlotID:        a.SlotID,
		BranchID:      a.BranchID,
		Customer:      a.CustomerUsername,
		Reference:     a.Reference,
		FromStatus:    string(from),
		ToStatus:      string(a.Status),
		Trigger:       trigger,
		Actor:         actor,
		Reason:        reason,
		OccurredAt:    now.UTC(),
	})
	return err
}

func (c *Coordinator) outcome(operation string, start time.Time, err error, span trace.Span) string {
	c.metrics.ObserveLatency(operation, c.now().Sub(start).Seconds())
	if err == nil {
		return "success"
	}
	span.RecordError(err)
	if errors.Is(err, ErrConcurrentModification) {
		c.metrics.ObserveVersionConflict(operation)
		return "conflict"
	}
	return "rejected"
}

func (c *Coordinator) observe(operation string, start time.Time, err error, span trace.Span) {
	c.metrics.ObserveBooking(c.outcome(operation, start, err, span))
}

func (c *Coordinator) observeTransition(operation string, start time.Time, err error, span trace.Span) {
	c.metrics.ObserveTransition(operation, c.outcome(operation, start, err, span))
}
