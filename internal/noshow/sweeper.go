package noshow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/observability/metrics"
	"github.com/mashudu-n/branch-appointments/pkg/logging"
)

// Coordinator is the booking surface the sweeper drives.
type Coordinator interface {
	ListUnattended(ctx context.Context, before, lookbackFloor time.Time, afterID uuid.UUID, limit int) ([]*appointments.Appointment, error)
	MarkNoShow(ctx context.Context, appointmentID uuid.UUID) error
}

// Sweeper walks appointments whose slot start passed without attendance and
// marks them no-show, returning their slot capacity.
type Sweeper struct {
	coord        Coordinator
	logger       *logging.Logger
	metrics      *metrics.BookingMetrics
	interval     time.Duration
	lookbackDays int
	batchSize    int
	now          func() time.Time
}

// NewSweeper creates a sweeper. Metrics may be nil.
func NewSweeper(coord Coordinator, logger *logging.Logger, m *metrics.BookingMetrics) *Sweeper {
	if coord == nil {
		panic("noshow: coordinator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		coord:        coord,
		logger:       logger,
		metrics:      m,
		interval:     time.Hour,
		lookbackDays: 3,
		batchSize:    500,
		now:          time.Now,
	}
}

// WithInterval overrides the tick interval.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithLookbackDays overrides how far back the sweep reaches.
func (s *Sweeper) WithLookbackDays(days int) *Sweeper {
	if days > 0 {
		s.lookbackDays = days
	}
	return s
}

// WithBatchSize overrides the page size.
func (s *Sweeper) WithBatchSize(size int) *Sweeper {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithClock overrides the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Start runs the sweep on a ticker until the context ends.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("no-show sweep failed", "error", err)
			}
		}
	}
}

// RunOnce pages through every unattended appointment and marks it no-show.
// Individual failures are logged and skipped so one bad row cannot stall the
// sweep; the cursor always advances. Returns the number marked.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	floor := now.AddDate(0, 0, -s.lookbackDays)
	cursor := uuid.Nil
	marked := 0

	for {
		batch, err := s.coord.ListUnattended(ctx, now, floor, cursor, s.batchSize)
		if err != nil {
			s.metrics.ObserveSweepBatch("error")
			return marked, fmt.Errorf("noshow: list unattended: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, a := range batch {
			cursor = a.ID
			if err := s.coord.MarkNoShow(ctx, a.ID); err != nil {
				s.logger.Error("failed to mark no-show",
					"appointment_id", a.ID, "reference", a.Reference, "error", err)
				continue
			}
			marked++
		}
		s.metrics.ObserveSweepBatch("success")

		if len(batch) < s.batchSize {
			break
		}
	}

	if marked > 0 {
		s.logger.Info("no-show sweep completed", "marked", marked)
		s.metrics.AddNoShowsSwept(marked)
	}
	return marked, nil
}
