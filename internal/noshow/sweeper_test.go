package noshow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/booking"
	"github.com/mashudu-n/branch-appointments/internal/slots"
)

var (
	sweepDay  = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	sweepTime = sweepDay.Add(16 * time.Hour)
)

func newSweepFixture(t *testing.T) (*Sweeper, *booking.Coordinator, *booking.MemoryStore) {
	t.Helper()
	store := booking.NewMemoryStore()
	now := sweepDay.Add(6 * time.Hour)
	coord := booking.NewCoordinator(store, appointments.NewMemorySequence(), booking.Config{}, nil, nil).
		WithClock(func() time.Time { return now })
	sweeper := NewSweeper(coord, nil, nil).
		WithBatchSize(2).
		WithClock(func() time.Time { return sweepTime })
	return sweeper, coord, store
}

func bookAt(t *testing.T, coord *booking.Coordinator, store *booking.MemoryStore, startOffset time.Duration, customer string) *appointments.Appointment {
	t.Helper()
	start := sweepDay.Add(startOffset)
	slot, err := slots.New("BR-001", sweepDay, start, start.Add(30*time.Minute), 1)
	require.NoError(t, err)
	store.SeedSlot(slot)
	a, err := coord.CreateBooking(context.Background(), booking.CreateBookingInput{
		SlotID:           slot.ID,
		CustomerUsername: customer,
		ServiceType:      "Account Opening",
	})
	require.NoError(t, err)
	return a
}

func TestRunOnceMarksUnattended(t *testing.T) {
	sweeper, coord, store := newSweepFixture(t)

	// Three unattended morning slots, one future slot, spread over days.
	unattended := []*appointments.Appointment{
		bookAt(t, coord, store, 9*time.Hour, "amahle.k"),
		bookAt(t, coord, store, 10*time.Hour, "bongani.d"),
		bookAt(t, coord, store, 11*time.Hour, "carla.v"),
	}
	future := bookAt(t, coord, store, 20*time.Hour, "thandi.m")

	marked, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	for _, a := range unattended {
		stored, ok := store.Appointment(a.ID)
		require.True(t, ok)
		assert.Equal(t, appointments.StatusNoShow, stored.Status)
		assert.Equal(t, appointments.SystemSchedulerActor, stored.TerminatedBy)

		slot, ok := store.Slot(stored.SlotID)
		require.True(t, ok)
		assert.Equal(t, 0, slot.BookingCount)
	}

	stored, _ := store.Appointment(future.ID)
	assert.Equal(t, appointments.StatusBooked, stored.Status)
}

func TestRunOnceSkipsAttendedAndTerminal(t *testing.T) {
	sweeper, coord, store := newSweepFixture(t)
	ctx := context.Background()

	attended := bookAt(t, coord, store, 9*time.Hour, "amahle.k")
	cancelled := bookAt(t, coord, store, 10*time.Hour, "bongani.d")

	require.NoError(t, coord.Cancel(ctx, cancelled.ID, "plans changed"))
	require.NoError(t, coord.CheckIn(ctx, attended.ID))
	require.NoError(t, coord.StartService(ctx, attended.ID, "consultant-7"))

	marked, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)

	stored, _ := store.Appointment(attended.ID)
	assert.Equal(t, appointments.StatusInProgress, stored.Status)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	sweeper, coord, store := newSweepFixture(t)
	a := bookAt(t, coord, store, 9*time.Hour, "amahle.k")

	marked, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, marked)

	stored, ok := store.Appointment(a.ID)
	require.True(t, ok)
	slot, _ := store.Slot(stored.SlotID)
	assert.Equal(t, 0, slot.BookingCount)
}
