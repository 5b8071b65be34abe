package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/mashudu-n/branch-appointments/pkg/logging"
)

// GeneratorStore is the persistence surface the generator needs.
type GeneratorStore interface {
	ListByBranchDay(ctx context.Context, branchID string, day time.Time) ([]*Slot, error)
	Insert(ctx context.Context, s *Slot) error
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DayPlan describes a branch's operating window for one day.
type DayPlan struct {
	Open         time.Duration // offset from midnight
	Close        time.Duration
	SlotDuration time.Duration
	Capacity     int
	// Spacing stretches the gap between consecutive slot starts. A factor of
	// 2 leaves a slot-length pause between slots for walk-in traffic.
	Spacing int
}

// Generator creates the day's bookable slots from a branch plan and retires
// slots whose day has passed.
type Generator struct {
	store  GeneratorStore
	logger *logging.Logger
}

// NewGenerator creates a slot generator.
func NewGenerator(store GeneratorStore, logger *logging.Logger) *Generator {
	if store == nil {
		panic("slots: generator store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{store: store, logger: logger}
}

// GenerateDay creates slots for one branch and day. Days that already have
// slots are skipped so a rerun is harmless.
func (g *Generator) GenerateDay(ctx context.Context, branchID string, day time.Time, plan DayPlan) ([]*Slot, error) {
	if plan.SlotDuration <= 0 {
		return nil, fmt.Errorf("slots: %w: slot duration must be positive", ErrInvalidSlot)
	}
	if plan.Capacity <= 0 {
		return nil, fmt.Errorf("slots: %w: capacity must be positive", ErrInvalidSlot)
	}
	if plan.Spacing < 1 {
		plan.Spacing = 1
	}

	day = day.UTC().Truncate(24 * time.Hour)

	existing, err := g.store.ListByBranchDay(ctx, branchID, day)
	if err != nil {
		return nil, fmt.Errorf("slots: generate day: %w", err)
	}
	if len(existing) > 0 {
		g.logger.Debug("slots already generated", "branch_id", branchID, "day", day.Format(time.DateOnly), "count", len(existing))
		return nil, nil
	}

	var generated []*Slot
	step := plan.SlotDuration * time.Duration(plan.Spacing)
	for open := plan.Open; open+plan.SlotDuration <= plan.Close; open += step {
		start := day.Add(open)
		end := start.Add(plan.SlotDuration)

		slot, err := New(branchID, day, start, end, plan.Capacity)
		if err != nil {
			return nil, fmt.Errorf("slots: generate day: %w", err)
		}
		if err := g.store.Insert(ctx, slot); err != nil {
			return nil, fmt.Errorf("slots: generate day: %w", err)
		}
		generated = append(generated, slot)
	}

	g.logger.Info("slots generated", "branch_id", branchID, "day", day.Format(time.DateOnly), "count", len(generated))
	return generated, nil
}

// ExpirePast retires AVAILABLE and BLOCKED slots from days before today.
func (g *Generator) ExpirePast(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UTC().Truncate(24 * time.Hour)
	n, err := g.store.ExpireBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("slots: expire past: %w", err)
	}
	if n > 0 {
		g.logger.Info("expired past slots", "count", n, "cutoff", cutoff.Format(time.DateOnly))
	}
	return n, nil
}
