package slots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresGetReconstitutesSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM slots").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "branch_id", "day", "start_time", "end_time", "max_capacity", "booking_count", "status", "version",
		}).AddRow(id, "branch-01", day, start, end, 3, 1, StatusAvailable, 5))

	repo := NewPostgresRepository(mock)
	slot, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, slot.ID)
	assert.Equal(t, "branch-01", slot.BranchID)
	assert.Equal(t, 3, slot.MaxCapacity)
	assert.Equal(t, 1, slot.BookingCount)
	assert.Equal(t, 5, slot.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM slots").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "branch_id", "day", "start_time", "end_time", "max_capacity", "booking_count", "status", "version",
		}))

	repo := NewPostgresRepository(mock)
	_, err = repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestPostgresUpdateBumpsVersionOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	slot, err := Reconstitute(uuid.New(), "branch-01", day, day.Add(9*time.Hour), day.Add(10*time.Hour), 2, 1, StatusAvailable, 3)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE slots").
		WithArgs(slot.BookingCount, slot.Status, slot.ID, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Update(context.Background(), slot))
	assert.Equal(t, 4, slot.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	slot, err := Reconstitute(uuid.New(), "branch-01", day, day.Add(9*time.Hour), day.Add(10*time.Hour), 2, 1, StatusAvailable, 3)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE slots").
		WithArgs(slot.BookingCount, slot.Status, slot.ID, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	err = repo.Update(context.Background(), slot)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, slot.Version)
}

func TestPostgresExpireBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE slots").
		WithArgs(StatusExpired, cutoff, StatusAvailable, StatusBlocked).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	repo := NewPostgresRepository(mock)
	n, err := repo.ExpireBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
