package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/lock"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/availability"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

func seed(t *testing.T, repo repository.AppointmentRepository, status model.AppointmentStatus, date, slot string) *model.Appointment {
	t.Helper()
	a := &model.Appointment{PatientID: "p1", DoctorID: "doc-1", Date: date, Time: slot, Status: status}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from    model.AppointmentStatus
		action  string
		allowed bool
	}{
		{model.AppointmentStatusPending, "approve", true},
		{model.AppointmentStatusPending, "reject", true},
		{model.AppointmentStatusPending, "delete", true},
		{model.AppointmentStatusApproved, "approve", false},
		{model.AppointmentStatusApproved, "reject", false},
		{model.AppointmentStatusApproved, "delete", true},
		{model.AppointmentStatusRejected, "approve", false},
		{model.AppointmentStatusCompleted, "reject", false},
		{model.AppointmentStatusCompleted, "delete", true},
		{model.AppointmentStatusDeleted, "delete", false},
		{model.AppointmentStatusDeleted, "approve", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.action, func(t *testing.T) {
			repo := document.NewAppointmentRepository(memory.New())
			svc := NewService(repo)
			a := seed(t, repo, tt.from, "2024-06-01", "09:00")

			var err error
			switch tt.action {
			case "approve":
				_, err = svc.Approve(context.Background(), a.ID)
			case "reject":
				_, err = svc.Reject(context.Background(), a.ID)
			case "delete":
				_, err = svc.SoftDelete(context.Background(), a.ID)
			}
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition), "got %v", err)
			}
		})
	}
}

func TestRejectFreesSlot(t *testing.T) {
	repo := document.NewAppointmentRepository(memory.New())
	l := lock.NewMemory()
	svc := NewService(repo, WithSlotLock(l))
	ctx := context.Background()

	a := seed(t, repo, model.AppointmentStatusPending, "2024-06-01", "09:00")
	key := lock.SlotKey("doc-1", "2024-06-01", "09:00")
	ok, err := l.Acquire(ctx, key, 0)
	require.NoError(t, err)
	require.True(t, ok)

	apps, _ := repo.List(ctx)
	assert.True(t, availability.Taken(apps, "doc-1", "2024-06-01").Has("09:00"))

	rejected, err := svc.Reject(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusRejected, rejected.Status)

	apps, _ = repo.List(ctx)
	assert.False(t, availability.Taken(apps, "doc-1", "2024-06-01").Has("09:00"))

	ok, err = l.Acquire(ctx, key, 0)
	require.NoError(t, err)
	assert.True(t, ok, "slot lock released")
}

func TestSoftDeleteKeepsRecord(t *testing.T) {
	repo := document.NewAppointmentRepository(memory.New())
	svc := NewService(repo)
	ctx := context.Background()

	a := seed(t, repo, model.AppointmentStatusApproved, "2024-06-01", "10:00")
	_, err := svc.SoftDelete(ctx, a.ID)
	require.NoError(t, err)

	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusDeleted, stored.Status)

	visible, err := svc.List(ctx, model.AppointmentFilter{DoctorID: "doc-1"})
	require.NoError(t, err)
	assert.Empty(t, visible)

	deleted, err := svc.List(ctx, model.AppointmentFilter{Status: model.AppointmentStatusDeleted})
	require.NoError(t, err)
	assert.Len(t, deleted, 1)
}

func TestListFiltersAndOrders(t *testing.T) {
	repo := document.NewAppointmentRepository(memory.New())
	svc := NewService(repo)
	ctx := context.Background()

	seed(t, repo, model.AppointmentStatusPending, "2024-06-01", "09:00")
	seed(t, repo, model.AppointmentStatusApproved, "2024-06-02", "08:00")
	seed(t, repo, model.AppointmentStatusPending, "2024-06-01", "11:00")
	require.NoError(t, repo.Create(ctx, &model.Appointment{PatientID: "p2", DoctorID: "doc-2", Date: "2024-06-01", Time: "09:00", Status: model.AppointmentStatusPending}))

	apps, err := svc.List(ctx, model.AppointmentFilter{DoctorID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "2024-06-02", apps[0].Date)
	assert.Equal(t, "11:00", apps[1].Time)

	pending, err := svc.List(ctx, model.AppointmentFilter{Status: model.AppointmentStatusPending, PatientID: "p1"})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestDoctorStats(t *testing.T) {
	repo := document.NewAppointmentRepository(memory.New())
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	seed(t, repo, model.AppointmentStatusPending, "2024-06-01", "09:00")
	seed(t, repo, model.AppointmentStatusApproved, "2024-06-01", "10:00")
	seed(t, repo, model.AppointmentStatusRejected, "2024-06-01", "11:00")
	seed(t, repo, model.AppointmentStatusCompleted, "2024-05-30", "11:00")

	stats, err := svc.DoctorStats(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, &model.DoctorStats{Pending: 1, Today: 2, Approved: 1, Completed: 1}, stats)
}

func TestMissingAppointment(t *testing.T) {
	svc := NewService(document.NewAppointmentRepository(memory.New()))
	_, err := svc.Approve(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
