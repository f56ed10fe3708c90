package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/filestore"
	filememory "github.com/jwalitptl/frontdesk-api/internal/filestore/memory"
	"github.com/jwalitptl/frontdesk-api/internal/lock"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/calendar"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

func newRequest(patient, slot string) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID:   patient,
		PatientName: "Patient " + patient,
		DoctorID:    "doc-1",
		DoctorName:  "Dr. House",
		Date:        "2024-06-01",
		Time:        slot,
		Description: "checkup",
	}
}

func setup(t *testing.T, opts ...Option) (*Service, repository.AppointmentRepository, *filememory.FileStore) {
	t.Helper()
	repo := document.NewAppointmentRepository(memory.New())
	files := filememory.New()
	svc := NewService(repo, files, calendar.MustPolicy(calendar.DefaultConfig()), Config{}, opts...)
	return svc, repo, files
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	svc, repo, _ := setup(t, WithMetrics(metrics.New("test")))
	ctx := context.Background()

	apt, err := svc.Book(ctx, newRequest("p1", "09:00"))
	require.NoError(t, err)
	assert.NotEmpty(t, apt.ID)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.False(t, apt.CreatedAt.IsZero())

	stored, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", stored.Time)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
}

func TestBookRejectsTakenSlot(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Appointment{
		DoctorID: "doc-1", Date: "2024-06-01", Time: "09:00",
		Status: model.AppointmentStatusApproved,
	}))

	taken, err := svc.taken(ctx, "doc-1", "2024-06-01")
	require.NoError(t, err)
	assert.True(t, taken.Has("09:00"))

	_, err = svc.Book(ctx, newRequest("p2", "09:00"))
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotConflict))

	apps, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1, "no record written on conflict")
}

func TestSequentialBookingsNeverDuplicate(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, newRequest("p1", "10:00"))
	require.NoError(t, err)
	_, err = svc.Book(ctx, newRequest("p2", "10:00"))
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotConflict))

	apps, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestBookValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *model.CreateAppointmentRequest
	}{
		{"nil", nil},
		{"slot off the calendar", newRequest("p1", "13:00")},
		{"unaligned slot", newRequest("p1", "09:15")},
		{"bad date", func() *model.CreateAppointmentRequest { r := newRequest("p1", "09:00"); r.Date = "01/06/2024"; return r }()},
		{"missing doctor", func() *model.CreateAppointmentRequest { r := newRequest("p1", "09:00"); r.DoctorID = ""; return r }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.req)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}
}

func TestBookUploadsFilesBeforeWriting(t *testing.T) {
	svc, repo, files := setup(t)
	ctx := context.Background()

	req := newRequest("p1", "11:00")
	req.MedicalFiles = []model.MedicalFile{
		{FileName: "scan.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
		{FileName: "report.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
	}

	apt, err := svc.Book(ctx, req)
	require.NoError(t, err)
	require.Len(t, apt.MedicalFiles, 2)
	assert.Equal(t, "scan.jpg", apt.MedicalFiles[0].FileName)
	assert.NotEmpty(t, apt.MedicalFiles[0].URL)
	assert.NotEmpty(t, apt.MedicalFiles[1].PublicID)
	assert.Equal(t, 2, files.Len())

	stored, err := repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.MedicalFiles, stored.MedicalFiles)
}

func TestUploadFailureAbortsBooking(t *testing.T) {
	svc, repo, files := setup(t)
	ctx := context.Background()
	files.Fail = func(dest filestore.Destination) error {
		if dest.FileName == "broken.pdf" {
			return errors.New("connection reset")
		}
		return nil
	}

	req := newRequest("p1", "11:30")
	req.MedicalFiles = []model.MedicalFile{
		{FileName: "ok.jpg", Data: []byte("a")},
		{FileName: "broken.pdf", Data: []byte("b")},
	}

	_, err := svc.Book(ctx, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrUploadFailure))

	apps, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestUploadTimeoutIsUploadFailure(t *testing.T) {
	repo := document.NewAppointmentRepository(memory.New())
	svc := NewService(repo, blockingFiles{}, calendar.MustPolicy(calendar.DefaultConfig()), Config{UploadTimeout: 1})

	req := newRequest("p1", "12:00")
	req.MedicalFiles = []model.MedicalFile{{FileName: "slow.pdf", Data: []byte("x")}}

	_, err := svc.Book(context.Background(), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrUploadFailure))
}

type blockingFiles struct{}

func (blockingFiles) Upload(ctx context.Context, _ []byte, _ filestore.Destination) (model.FileRef, error) {
	<-ctx.Done()
	return model.FileRef{}, ctx.Err()
}

// barrierRepo makes every List call wait until the other party has also
// read, so both guards see the same pre-write state.
type barrierRepo struct {
	repository.AppointmentRepository
	mu      sync.Mutex
	waiting chan struct{}
}

func newBarrierRepo(inner repository.AppointmentRepository) *barrierRepo {
	return &barrierRepo{AppointmentRepository: inner}
}

func (b *barrierRepo) List(ctx context.Context) ([]*model.Appointment, error) {
	apps, err := b.AppointmentRepository.List(ctx)

	b.mu.Lock()
	if b.waiting == nil {
		ch := make(chan struct{})
		b.waiting = ch
		b.mu.Unlock()
		<-ch
	} else {
		close(b.waiting)
		b.waiting = nil
		b.mu.Unlock()
	}
	return apps, err
}

func bookConcurrently(t *testing.T, svc *Service) []error {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, patient := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, patient string) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), newRequest(patient, "14:30"))
		}(i, patient)
	}
	wg.Wait()
	return errs
}

func TestInterleavedBookingsCanDuplicateWithoutLock(t *testing.T) {
	inner := document.NewAppointmentRepository(memory.New())
	svc := NewService(newBarrierRepo(inner), filememory.New(), calendar.MustPolicy(calendar.DefaultConfig()), Config{})

	for _, err := range bookConcurrently(t, svc) {
		assert.NoError(t, err)
	}

	apps, err := inner.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, apps, 2, "both guards admitted the same slot")
}

func TestInterleavedBookingsAreExclusiveWithLock(t *testing.T) {
	inner := document.NewAppointmentRepository(memory.New())
	svc := NewService(newBarrierRepo(inner), filememory.New(), calendar.MustPolicy(calendar.DefaultConfig()), Config{},
		WithSlotLock(lock.NewMemory()))
	assert.True(t, svc.Strict())

	var ok, conflicts int
	for _, err := range bookConcurrently(t, svc) {
		switch {
		case err == nil:
			ok++
		case apperrors.Is(err, apperrors.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	apps, err := inner.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

type failingCreate struct {
	repository.AppointmentRepository
}

func (failingCreate) Create(context.Context, *model.Appointment) error {
	return apperrors.RemoteUnavailable("create appointment", errors.New("timeout"))
}

func TestWriteFailureReleasesLock(t *testing.T) {
	inner := document.NewAppointmentRepository(memory.New())
	l := lock.NewMemory()
	svc := NewService(failingCreate{inner}, filememory.New(), calendar.MustPolicy(calendar.DefaultConfig()), Config{}, WithSlotLock(l))

	_, err := svc.Book(context.Background(), newRequest("p1", "08:30"))
	assert.True(t, apperrors.Is(err, apperrors.ErrRemoteUnavailable))

	acquired, err := l.Acquire(context.Background(), lock.SlotKey("doc-1", "2024-06-01", "08:30"), 0)
	require.NoError(t, err)
	assert.True(t, acquired, "lock released after failed write")
}

func TestAvailableSlots(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Appointment{DoctorID: "doc-1", Date: "2024-06-01", Time: "08:00", Status: model.AppointmentStatusPending}))
	require.NoError(t, repo.Create(ctx, &model.Appointment{DoctorID: "doc-1", Date: "2024-06-01", Time: "08:30", Status: model.AppointmentStatusRejected}))

	slots, err := svc.AvailableSlots(ctx, "doc-1", "2024-06-01")
	require.NoError(t, err)
	assert.Len(t, slots, 13)
	assert.Equal(t, "08:30", slots[0])

	_, err = svc.AvailableSlots(ctx, "doc-1", "June 1")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestWatchAvailability(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	var updates [][]string
	sub, err := svc.WatchAvailability(ctx, "doc-1", "2024-06-01", func(slots []string) {
		updates = append(updates, slots)
	})
	require.NoError(t, err)

	_, err = svc.Book(ctx, newRequest("p1", "08:00"))
	require.NoError(t, err)
	sub.Unsubscribe()
	_, err = svc.Book(ctx, newRequest("p2", "08:30"))
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Len(t, updates[0], 14)
	assert.Len(t, updates[1], 13)
	assert.NotContains(t, updates[1], "08:00")
}
