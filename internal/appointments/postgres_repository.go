package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pgx surface the repository needs. Both *pgxpool.Pool and pgx.Tx
// satisfy it, so the same repository can run standalone or inside a
// coordinator transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo bound to a pool or transaction.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, slot_id, previous_slot_id, branch_id, customer_username, service_type,
	status, reference, starts_at, version, created_at, updated_at,
	checked_in_at, in_progress_at, completed_at, terminated_at,
	terminated_by, termination_reason, termination_notes,
	assigned_consultant_id, service_notes, reschedule_count`

// Get fetches an appointment by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByReference fetches an appointment by its customer-facing reference.
func (r *PostgresRepository) GetByReference(ctx context.Context, reference string) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE reference = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, reference))
}

// Insert persists a freshly booked appointment. The row starts at version 1.
// A partial unique index enforces one active appointment per customer per
// branch per day; a violation maps to ErrDuplicateActiveAppointment.
func (r *PostgresRepository) Insert(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, slot_id, previous_slot_id, branch_id, customer_username, service_type,
			status, reference, starts_at, day, version, created_at, updated_at,
			checked_in_at, in_progress_at, completed_at, terminated_at,
			terminated_by, termination_reason, termination_notes,
			assigned_consultant_id, service_notes, reschedule_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	if _, err := r.db.Exec(ctx, query,
		a.ID, a.SlotID, nilUUID(a.PreviousSlotID), a.BranchID, a.CustomerUsername, a.ServiceType,
		a.Status, a.Reference, a.StartsAt, a.Day(), a.CreatedAt, a.UpdatedAt,
		a.CheckedInAt, a.InProgressAt, a.CompletedAt, a.TerminatedAt,
		nilString(a.TerminatedBy), nilString(string(a.TerminationReason)), nilString(a.TerminationNotes),
		nilString(a.AssignedConsultantID), nilString(a.ServiceNotes), a.RescheduleCount,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("appointments: insert: %w", ErrDuplicateActiveAppointment)
		}
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	a.Version = 1
	return nil
}

// Update writes the appointment back under an optimistic version check. A
// losing writer gets ErrVersionConflict and must re-read before retrying.
func (r *PostgresRepository) Update(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments
		SET slot_id = $1, previous_slot_id = $2, status = $3, starts_at = $4, day = $5,
			updated_at = $6, checked_in_at = $7, in_progress_at = $8, completed_at = $9,
			terminated_at = $10, terminated_by = $11, termination_reason = $12,
			termination_notes = $13, assigned_consultant_id = $14, service_notes = $15,
			reschedule_count = $16, version = version + 1
		WHERE id = $17 AND version = $18
	`
	ct, err := r.db.Exec(ctx, query,
		a.SlotID, nilUUID(a.PreviousSlotID), a.Status, a.StartsAt, a.Day(),
		a.UpdatedAt, a.CheckedInAt, a.InProgressAt, a.CompletedAt,
		a.TerminatedAt, nilString(a.TerminatedBy), nilString(string(a.TerminationReason)),
		nilString(a.TerminationNotes), nilString(a.AssignedConsultantID), nilString(a.ServiceNotes),
		a.RescheduleCount, a.ID, a.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("appointments: update: %w", ErrDuplicateActiveAppointment)
		}
		return fmt.Errorf("appointments: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("appointments: %w: appointment %s at version %d", ErrVersionConflict, a.ID, a.Version)
	}
	a.Version++
	return nil
}

// GetUserActiveAppointment returns the customer's non-terminal appointment at
// the branch on the given day, or ErrAppointmentNotFound.
func (r *PostgresRepository) GetUserActiveAppointment(ctx context.Context, customerUsername, branchID string, day time.Time) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE customer_username = $1 AND branch_id = $2 AND day = $3
			AND status IN ($4, $5, $6)
	`
	return r.scanOne(r.db.QueryRow(ctx, query,
		customerUsername, branchID, day, StatusBooked, StatusCheckedIn, StatusInProgress))
}

// GetUnattendedAppointments pages through appointments whose slot start has
// passed but which are still BOOKED or CHECKED_IN, cursored by id so each
// sweep batch resumes where the previous one stopped. The lookback floor
// keeps the sweep from churning through ancient history.
func (r *PostgresRepository) GetUnattendedAppointments(ctx context.Context, before, lookbackFloor time.Time, afterID uuid.UUID, limit int) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status IN ($1, $2)
			AND starts_at < $3 AND starts_at >= $4
			AND id > $5
		ORDER BY id
		LIMIT $6
	`
	rows, err := r.db.Query(ctx, query,
		StatusBooked, StatusCheckedIn, before, lookbackFloor, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: unattended query failed: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// AppointmentPage is one page of a customer's booking history.
type AppointmentPage struct {
	Appointments []*Appointment
	TotalCount   int64
}

// ListByCustomer returns the customer's appointments newest first, with the
// unpaged total carried alongside via a window function.
func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerUsername string, limit, offset int) (*AppointmentPage, error) {
	query := `
		SELECT ` + appointmentColumns + `, COUNT(*) OVER() AS total_count
		FROM appointments
		WHERE customer_username = $1
		ORDER BY starts_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, customerUsername, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by customer failed: %w", err)
	}
	defer rows.Close()

	page := &AppointmentPage{}
	for rows.Next() {
		a, total, err := scanAppointmentWithTotal(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		page.Appointments = append(page.Appointments, a)
		page.TotalCount = total
	}
	return page, rows.Err()
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Appointment, error) {
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) collect(rows pgx.Rows) ([]*Appointment, error) {
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	a, fields := appointmentScanTargets()
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	return a.finish(), nil
}

func scanAppointmentWithTotal(row pgx.Row) (*Appointment, int64, error) {
	a, fields := appointmentScanTargets()
	var total int64
	if err := row.Scan(append(fields, &total)...); err != nil {
		return nil, 0, err
	}
	return a.finish(), total, nil
}

// scannedAppointment buffers nullable columns before they land on the entity.
type scannedAppointment struct {
	appt                 Appointment
	previousSlotID       *uuid.UUID
	terminatedBy         *string
	terminationReason    *string
	terminationNotes     *string
	assignedConsultantID *string
	serviceNotes         *string
}

func appointmentScanTargets() (*scannedAppointment, []any) {
	s := &scannedAppointment{}
	a := &s.appt
	return s, []any{
		&a.ID, &a.SlotID, &s.previousSlotID, &a.BranchID, &a.CustomerUsername, &a.ServiceType,
		&a.Status, &a.Reference, &a.StartsAt, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		&a.CheckedInAt, &a.InProgressAt, &a.CompletedAt, &a.TerminatedAt,
		&s.terminatedBy, &s.terminationReason, &s.terminationNotes,
		&s.assignedConsultantID, &s.serviceNotes, &a.RescheduleCount,
	}
}

func (s *scannedAppointment) finish() *Appointment {
	a := s.appt
	if s.previousSlotID != nil {
		a.PreviousSlotID = *s.previousSlotID
	}
	a.TerminatedBy = deref(s.terminatedBy)
	a.TerminationReason = TerminationReason(deref(s.terminationReason))
	a.TerminationNotes = deref(s.terminationNotes)
	a.AssignedConsultantID = deref(s.assignedConsultantID)
	a.ServiceNotes = deref(s.serviceNotes)
	return &a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
