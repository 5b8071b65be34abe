package appointments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestAppointment(t *testing.T, startsAt time.Time) *Appointment {
	t.Helper()
	a, err := New(uuid.New(), "BR-001", "thandi.m", "Account Opening", "APT-2026-0000001", startsAt, testNow)
	require.NoError(t, err)
	return a
}

func TestNewValidation(t *testing.T) {
	startsAt := testNow.Add(3 * time.Hour)

	tests := []struct {
		name     string
		slotID   uuid.UUID
		branch   string
		customer string
		service  string
		ref      string
		startsAt time.Time
		wantErr  error
	}{
		{"nil slot id", uuid.Nil, "BR-001", "thandi.m", "Account Opening", "APT-2026-0000001", startsAt, ErrInvalidAppointment},
		{"blank branch", uuid.New(), "  ", "thandi.m", "Account Opening", "APT-2026-0000001", startsAt, ErrInvalidAppointment},
		{"branch too short", uuid.New(), "B", "thandi.m", "Account Opening", "APT-2026-0000001", startsAt, ErrInvalidAppointment},
		{"blank customer", uuid.New(), "BR-001", "", "Account Opening", "APT-2026-0000001", startsAt, ErrInvalidAppointment},
		{"service too short", uuid.New(), "BR-001", "thandi.m", "ab", "APT-2026-0000001", startsAt, ErrInvalidAppointment},
		{"bad reference", uuid.New(), "BR-001", "thandi.m", "Account Opening", "APT-26-1", startsAt, ErrInvalidReference},
		{"start in the past", uuid.New(), "BR-001", "thandi.m", "Account Opening", "APT-2026-0000001", testNow.Add(-time.Minute), ErrInvalidAppointment},
		{"start equals now", uuid.New(), "BR-001", "thandi.m", "Account Opening", "APT-2026-0000001", testNow, ErrInvalidAppointment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.slotID, tt.branch, tt.customer, tt.service, tt.ref, tt.startsAt, testNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	a, err := New(uuid.New(), "BR-001", "thandi.m", "Account Opening", "APT-2026-0000001", startsAt, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, a.Status)
	assert.True(t, a.IsActive())
	assert.Zero(t, a.RescheduleCount)
}

func TestHappyPathLifecycle(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))

	arrival := a.StartsAt.Add(2 * time.Minute)
	require.NoError(t, a.CheckIn(arrival))
	assert.Equal(t, StatusCheckedIn, a.Status)
	require.NotNil(t, a.CheckedInAt)
	assert.True(t, a.WithinGraceWindow(arrival, DefaultGraceWindow))

	require.NoError(t, a.StartService("consultant-7", arrival.Add(5*time.Minute)))
	assert.Equal(t, StatusInProgress, a.Status)
	assert.Equal(t, "consultant-7", a.AssignedConsultantID)

	require.NoError(t, a.Complete("account opened", arrival.Add(30*time.Minute)))
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Equal(t, "account opened", a.ServiceNotes)
	require.NotNil(t, a.CompletedAt)
	assert.True(t, a.IsTerminal())
}

func TestCheckInHasNoTimeGate(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))

	// Arrival well past the grace window still checks in.
	late := a.StartsAt.Add(40 * time.Minute)
	require.NoError(t, a.CheckIn(late))
	assert.Equal(t, StatusCheckedIn, a.Status)
	assert.False(t, a.WithinGraceWindow(late, DefaultGraceWindow))
}

func TestStartServiceRequiresCheckIn(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	err := a.StartService("consultant-7", testNow)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestCompleteValidatesNotes(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	require.NoError(t, a.CheckIn(a.StartsAt))
	require.NoError(t, a.StartService("consultant-7", a.StartsAt))

	assert.ErrorIs(t, a.Complete("   ", a.StartsAt), ErrInvalidNotes)

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, a.Complete(string(long), a.StartsAt), ErrInvalidNotes)
}

func TestCustomerCancelRespectsWindow(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))

	// Inside the 120 minute window.
	late := a.StartsAt.Add(-90 * time.Minute)
	err := a.CancelByCustomer("plans changed", late, DefaultCancellationWindow)
	assert.ErrorIs(t, err, ErrWindowClosed)
	assert.Equal(t, StatusBooked, a.Status)

	// Exactly at the boundary is already closed.
	boundary := a.StartsAt.Add(-DefaultCancellationWindow)
	assert.ErrorIs(t, a.CancelByCustomer("plans changed", boundary, DefaultCancellationWindow), ErrWindowClosed)

	// One second outside succeeds.
	ok := boundary.Add(-time.Second)
	require.NoError(t, a.CancelByCustomer("plans changed", ok, DefaultCancellationWindow))
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Equal(t, "thandi.m", a.TerminatedBy)
	assert.Equal(t, ReasonCustomerCancellation, a.TerminationReason)
	assert.Equal(t, "plans changed", a.TerminationNotes)
	require.NotNil(t, a.TerminatedAt)
}

func TestCustomerCancelReasonValidation(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(5*time.Hour))
	assert.ErrorIs(t, a.CancelByCustomer("", testNow, DefaultCancellationWindow), ErrInvalidReason)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'r'
	}
	assert.ErrorIs(t, a.CancelByCustomer(string(long), testNow, DefaultCancellationWindow), ErrInvalidReason)
}

func TestStaffCancelIgnoresWindow(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	require.NoError(t, a.CheckIn(a.StartsAt))
	require.NoError(t, a.StartService("consultant-7", a.StartsAt))

	// Mid-service, well inside any customer window.
	require.NoError(t, a.CancelByStaff("staff-42", "system outage", a.StartsAt.Add(10*time.Minute)))
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Equal(t, "staff-42", a.TerminatedBy)
	assert.Equal(t, ReasonStaffCancellation, a.TerminationReason)
}

func TestStaffCancelValidatesActor(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	assert.ErrorIs(t, a.CancelByStaff(" ", "reason", testNow), ErrInvalidActorID)
	assert.ErrorIs(t, a.CancelByStaff("s", "reason", testNow), ErrInvalidActorID)
}

func TestMarkAsNoShow(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	sweepAt := a.StartsAt.Add(time.Hour)

	require.NoError(t, a.MarkAsNoShow(sweepAt))
	assert.Equal(t, StatusNoShow, a.Status)
	assert.Equal(t, SystemSchedulerActor, a.TerminatedBy)
	assert.Equal(t, ReasonCustomerNoShow, a.TerminationReason)
	assert.True(t, a.IsTerminal())
}

func TestMarkAsNoShowFromCheckedIn(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	require.NoError(t, a.CheckIn(a.StartsAt))
	require.NoError(t, a.MarkAsNoShow(a.StartsAt.Add(2*time.Hour)))
	assert.Equal(t, StatusNoShow, a.Status)
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminal := func(t *testing.T) *Appointment {
		a := newTestAppointment(t, testNow.Add(5*time.Hour))
		require.NoError(t, a.CancelByCustomer("done", testNow, DefaultCancellationWindow))
		return a
	}

	a := terminal(t)
	assert.ErrorIs(t, a.CheckIn(testNow), ErrInvalidStateTransition)
	assert.ErrorIs(t, a.StartService("consultant-7", testNow), ErrInvalidStateTransition)
	assert.ErrorIs(t, a.Complete("notes", testNow), ErrInvalidStateTransition)
	assert.ErrorIs(t, a.CancelByStaff("staff-42", "again", testNow), ErrInvalidStateTransition)
	assert.ErrorIs(t, a.MarkAsNoShow(testNow), ErrInvalidStateTransition)
	assert.ErrorIs(t, a.Reschedule(uuid.New(), testNow.Add(24*time.Hour), testNow, DefaultCancellationWindow), ErrInvalidStateTransition)
}

func TestRescheduleMovesSlots(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(5*time.Hour))
	oldSlot := a.SlotID
	newSlot := uuid.New()
	newStart := testNow.Add(26 * time.Hour)

	require.NoError(t, a.Reschedule(newSlot, newStart, testNow, DefaultCancellationWindow))
	assert.Equal(t, newSlot, a.SlotID)
	assert.Equal(t, oldSlot, a.PreviousSlotID)
	assert.Equal(t, newStart, a.StartsAt)
	assert.Equal(t, 1, a.RescheduleCount)
	assert.Equal(t, StatusBooked, a.Status)
	assert.True(t, a.IsRescheduled())
}

func TestRescheduleRejectsSameSlot(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(5*time.Hour))
	err := a.Reschedule(a.SlotID, testNow.Add(26*time.Hour), testNow, DefaultCancellationWindow)
	assert.ErrorIs(t, err, ErrSameSlot)
	assert.Zero(t, a.RescheduleCount)
}

func TestRescheduleWindowClosed(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(5*time.Hour))
	inside := a.StartsAt.Add(-time.Hour)
	err := a.Reschedule(uuid.New(), testNow.Add(26*time.Hour), inside, DefaultCancellationWindow)
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestRescheduleCap(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(100*time.Hour))

	for i := 0; i < MaxRescheduleCount; i++ {
		require.NoError(t, a.Reschedule(uuid.New(), testNow.Add(time.Duration(101+i)*time.Hour), testNow, DefaultCancellationWindow))
	}
	assert.Equal(t, MaxRescheduleCount, a.RescheduleCount)

	err := a.Reschedule(uuid.New(), testNow.Add(200*time.Hour), testNow, DefaultCancellationWindow)
	assert.ErrorIs(t, err, ErrRescheduleLimit)
	assert.Equal(t, MaxRescheduleCount, a.RescheduleCount)
}

func TestDayTruncatesToMidnight(t *testing.T) {
	a := newTestAppointment(t, time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), a.Day())
}

func TestCustomerActionsApply(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(5*time.Hour))
	newSlot := uuid.New()

	var action CustomerAction = Reschedule{
		NewSlotID:   newSlot,
		NewStartsAt: testNow.Add(26 * time.Hour),
		At:          testNow,
		Window:      DefaultCancellationWindow,
	}
	require.NoError(t, action.Apply(a))
	assert.Equal(t, newSlot, a.SlotID)

	action = Cancel{Reason: "moved away", At: testNow, Window: DefaultCancellationWindow}
	require.NoError(t, action.Apply(a))
	assert.Equal(t, StatusCancelled, a.Status)
}

func TestAttendanceActionsApply(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))

	steps := []AttendanceAction{
		CheckIn{At: a.StartsAt},
		StartService{ConsultantID: "consultant-7", At: a.StartsAt},
		Complete{Notes: "all done", At: a.StartsAt.Add(20 * time.Minute)},
	}
	for _, step := range steps {
		require.NoError(t, step.Apply(a))
	}
	assert.Equal(t, StatusCompleted, a.Status)

	b := newTestAppointment(t, testNow.Add(3*time.Hour))
	require.NoError(t, AttendanceAction(CancelByStaff{StaffID: "staff-42", Reason: "closed early", At: testNow}).Apply(b))
	assert.Equal(t, StatusCancelled, b.Status)
}

func TestCloneIsIndependent(t *testing.T) {
	a := newTestAppointment(t, testNow.Add(3*time.Hour))
	require.NoError(t, a.CheckIn(a.StartsAt))

	cp := a.Clone()
	require.NoError(t, cp.StartService("consultant-7", a.StartsAt))

	assert.Equal(t, StatusCheckedIn, a.Status)
	assert.Equal(t, StatusInProgress, cp.Status)
	assert.Nil(t, a.InProgressAt)
}
