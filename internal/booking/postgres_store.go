package booking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/events"
	"github.com/mashudu-n/branch-appointments/internal/slots"
)

// PostgresStore runs coordinator transactions on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin tx: %w", err)
	}
	defer pgxTx.Rollback(ctx)

	if err := fn(&postgresTx{tx: pgxTx}); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Slots() SlotRepository {
	return slots.NewPostgresRepository(t.tx)
}

func (t *postgresTx) Appointments() AppointmentRepository {
	return appointments.NewPostgresRepository(t.tx)
}

func (t *postgresTx) Outbox() OutboxRepository {
	return events.NewOutboxStore(t.tx)
}
