package discharge

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/handler/handlertest"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/appointment"
	"github.com/jwalitptl/frontdesk-api/internal/service/discharge"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
)

type fixture struct {
	handler     *Handler
	users       repository.UserRepository
	patient     *model.User
	appointment *model.Appointment
}

func newFixture(t *testing.T, status model.AppointmentStatus) *fixture {
	t.Helper()
	s := memory.New()
	appointments := document.NewAppointmentRepository(s)
	users := document.NewUserRepository(s)
	bills := document.NewBillRepository(s)
	ctx := context.Background()

	patient := &model.User{Email: "jane@example.com", FullName: "Jane Doe", Role: model.UserRolePatient, Status: model.UserStatusApproved}
	require.NoError(t, users.Create(ctx, patient))
	apt := &model.Appointment{PatientID: patient.ID, DoctorID: "d1", Date: "2024-06-01", Time: "09:00", Status: status}
	require.NoError(t, appointments.Create(ctx, apt))

	return &fixture{
		handler:     NewHandler(discharge.NewService(appointments, users, bills), appointment.NewService(appointments)),
		users:       users,
		patient:     patient,
		appointment: apt,
	}
}

func (f *fixture) body() gin.H {
	return gin.H{
		"appointmentId": f.appointment.ID,
		"patientId":     f.patient.ID,
		"roomCharges":   500,
		"medicineCosts": 200,
		"doctorFees":    300,
	}
}

func TestDoctorDischargesOwnPatient(t *testing.T) {
	f := newFixture(t, model.AppointmentStatusApproved)
	r := handlertest.Router(f.handler, handlertest.As("d1", model.UserRoleDoctor))

	w := handlertest.Do(r, http.MethodPost, "/api/v1/discharges", f.body())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res discharge.Result
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &res))
	assert.Equal(t, 1000.0, res.Bill.Total)
	assert.Len(t, res.Completed, 3)

	user, err := f.users.Get(context.Background(), f.patient.ID)
	require.NoError(t, err)
	assert.True(t, user.Discharged)
}

func TestOtherDoctorCannotDischarge(t *testing.T) {
	f := newFixture(t, model.AppointmentStatusApproved)
	r := handlertest.Router(f.handler, handlertest.As("d2", model.UserRoleDoctor))

	w := handlertest.Do(r, http.MethodPost, "/api/v1/discharges", f.body())
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := f.body()
	delete(body, "appointmentId")
	w = handlertest.Do(r, http.MethodPost, "/api/v1/discharges", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDischargeReportsFailedStep(t *testing.T) {
	f := newFixture(t, model.AppointmentStatusPending)
	r := handlertest.Router(f.handler, handlertest.As("admin", model.UserRoleAdmin))

	w := handlertest.Do(r, http.MethodPost, "/api/v1/discharges", f.body())
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Status    string   `json:"status"`
		Step      string   `json:"step"`
		Completed []string `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, string(discharge.StepCheck), body.Step)
	assert.Empty(t, body.Completed)
}

func TestAdminDischargeWithoutAppointment(t *testing.T) {
	f := newFixture(t, model.AppointmentStatusApproved)
	r := handlertest.Router(f.handler, handlertest.As("admin", model.UserRoleAdmin))

	w := handlertest.Do(r, http.MethodPost, "/api/v1/discharges", gin.H{"patientId": f.patient.ID, "roomCharges": -5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res discharge.Result
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &res))
	assert.Equal(t, 0.0, res.Bill.Total)
}

func TestAcknowledgeIsSelfOnly(t *testing.T) {
	f := newFixture(t, model.AppointmentStatusApproved)
	require.NoError(t, f.users.UpdateFields(context.Background(), f.patient.ID, map[string]interface{}{"discharged": true}))
	path := "/api/v1/patients/" + f.patient.ID + "/discharge/acknowledge"

	w := handlertest.Do(handlertest.Router(f.handler, handlertest.As("someone", model.UserRolePatient)), http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = handlertest.Do(handlertest.Router(f.handler, handlertest.As(f.patient.ID, model.UserRolePatient)), http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	user, err := f.users.Get(context.Background(), f.patient.ID)
	require.NoError(t, err)
	assert.False(t, user.Discharged)
}
