package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/email"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type fakeMailer struct {
	approvals []string
}

func (f *fakeMailer) SendApproval(_ context.Context, to, _ string) error {
	f.approvals = append(f.approvals, to)
	return nil
}

func (f *fakeMailer) SendInvoice(context.Context, string, string, email.Attachment) error {
	return nil
}

func (f *fakeMailer) SendCustom(context.Context, string, string, string, ...email.Attachment) error {
	return nil
}

func newService(t *testing.T) (*Service, *fakeMailer) {
	t.Helper()
	s := memory.New()
	mailer := &fakeMailer{}
	return NewService(document.NewUserRepository(s), document.NewAppointmentRepository(s), mailer, nil, nil), mailer
}

func register(t *testing.T, svc *Service, email, name, role, dept string) *model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), &model.RegisterUserRequest{Email: email, FullName: name, Role: role, Department: dept})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u := register(t, svc, "Jane@Example.com", "Jane Doe", model.UserRolePatient, "")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, model.UserStatusPending, u.Status)
	assert.False(t, u.Discharged)

	_, err := svc.Register(ctx, &model.RegisterUserRequest{Email: "jane@example.com", FullName: "Again", Role: model.UserRolePatient})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "duplicate email")

	_, err = svc.Register(ctx, &model.RegisterUserRequest{Email: "root@example.com", FullName: "Root", Role: model.UserRoleAdmin})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "admin cannot self-register")

	_, err = svc.Register(ctx, &model.RegisterUserRequest{Email: "doc@example.com", FullName: "Doc", Role: model.UserRoleDoctor})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "doctor needs a department")
}

func TestApproveAndReject(t *testing.T) {
	svc, mailer := newService(t)
	ctx := context.Background()

	a := register(t, svc, "a@example.com", "A", model.UserRolePatient, "")
	b := register(t, svc, "b@example.com", "B", model.UserRolePatient, "")

	approved, err := svc.Approve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusApproved, approved.Status)
	assert.Equal(t, []string{"a@example.com"}, mailer.approvals)

	_, err = svc.Approve(ctx, a.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	require.NoError(t, svc.Reject(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound), "rejected users are deleted")

	assert.True(t, apperrors.Is(svc.Reject(ctx, a.ID), apperrors.ErrInvalidTransition))
}

func TestListsAndStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cardio := register(t, svc, "c@example.com", "Dr C", model.UserRoleDoctor, "Cardiology")
	neuro := register(t, svc, "n@example.com", "Dr N", model.UserRoleDoctor, "Neurology")
	register(t, svc, "pending@example.com", "Dr P", model.UserRoleDoctor, "Cardiology")
	patient := register(t, svc, "p@example.com", "Pat", model.UserRolePatient, "")
	gone := register(t, svc, "g@example.com", "Gone", model.UserRolePatient, "")

	for _, id := range []string{cardio.ID, neuro.ID, patient.ID, gone.ID} {
		_, err := svc.Approve(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, svc.repo.UpdateFields(ctx, gone.ID, map[string]interface{}{"discharged": true}))
	require.NoError(t, svc.appointments.Create(ctx, &model.Appointment{DoctorID: cardio.ID, PatientID: patient.ID, Status: model.AppointmentStatusPending}))
	require.NoError(t, svc.appointments.Create(ctx, &model.Appointment{DoctorID: cardio.ID, PatientID: patient.ID, Status: model.AppointmentStatusDeleted}))

	doctors, err := svc.ListDoctors(ctx, "cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, cardio.ID, doctors[0].ID)

	all, err := svc.ListDoctors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	admitted, err := svc.ListAdmitted(ctx)
	require.NoError(t, err)
	require.Len(t, admitted, 1)
	assert.Equal(t, patient.ID, admitted[0].ID)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.AdminStats{Doctors: 2, Admitted: 1, Pending: 1, Appointments: 1}, stats)
}
