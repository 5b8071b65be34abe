package slots

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

// PostgresRepository stores slots in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo bound to a pool or transaction.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("slots: db required")
	}
	return &PostgresRepository{db: db}
}

const slotColumns = `id, branch_id, day, start_time, end_time, max_capacity, booking_count, status, version`

// Get fetches a slot by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// Insert persists a freshly generated slot. The row starts at version 1.
func (r *PostgresRepository) Insert(ctx context.Context, s *Slot) error {
	query := `
		INSERT INTO slots (id, branch_id, day, start_time, end_time, max_capacity, booking_count, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	`
	if _, err := r.db.Exec(ctx, query,
		s.ID, s.BranchID, s.Day, s.Start, s.End, s.MaxCapacity, s.BookingCount, s.Status,
	); err != nil {
		return fmt.Errorf("slots: insert failed: %w", err)
	}
	s.Version = 1
	return nil
}

// Update writes the slot back under an optimistic version check. A losing
// writer gets ErrVersionConflict and must re-read before retrying.
func (r *PostgresRepository) Update(ctx context.Context, s *Slot) error {
	query := `
		UPDATE slots
		SET booking_count = $1, status = $2, version = version + 1
		WHERE id = $3 AND version = $4
	`
	ct, err := r.db.Exec(ctx, query, s.BookingCount, s.Status, s.ID, s.Version)
	if err != nil {
		return fmt.Errorf("slots: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("slots: %w: slot %s at version %d", ErrVersionConflict, s.ID, s.Version)
	}
	s.Version++
	return nil
}

// ListByBranchDay returns a branch's slots for a calendar day ordered by start time.
func (r *PostgresRepository) ListByBranchDay(ctx context.Context, branchID string, day time.Time) ([]*Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE branch_id = $1 AND day = $2
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, branchID, day)
	if err != nil {
		return nil, fmt.Errorf("slots: list by branch day failed: %w", err)
	}
	defer rows.Close()

	var out []*Slot
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ExpireBefore retires AVAILABLE and BLOCKED slots from days before the cutoff.
// BOOKED slots are left alone; their appointments decide their fate.
func (r *PostgresRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET status = $1, version = version + 1
		WHERE day < $2 AND status IN ($3, $4)
	`
	ct, err := r.db.Exec(ctx, query, StatusExpired, cutoff, StatusAvailable, StatusBlocked)
	if err != nil {
		return 0, fmt.Errorf("slots: expire before failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Slot, error) {
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("slots: select failed: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) scanRow(rows pgx.Rows) (*Slot, error) {
	s, err := scanSlot(rows)
	if err != nil {
		return nil, fmt.Errorf("slots: scan failed: %w", err)
	}
	return s, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		id                        uuid.UUID
		branchID                  string
		day, start, end           time.Time
		maxCapacity, bookingCount int
		status                    Status
		version                   int
	)
	if err := row.Scan(&id, &branchID, &day, &start, &end, &maxCapacity, &bookingCount, &status, &version); err != nil {
		return nil, err
	}
	return Reconstitute(id, branchID, day, start, end, maxCapacity, bookingCount, status, version)
}
