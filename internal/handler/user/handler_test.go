package user

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/handler/handlertest"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/user"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
)

type forgetful struct {
	forgotten []string
}

func (f *forgetful) Forget(id string) {
	f.forgotten = append(f.forgotten, id)
}

type fixture struct {
	handler  *Handler
	users    repository.UserRepository
	sessions *forgetful
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	users := document.NewUserRepository(s)
	sessions := &forgetful{}
	svc := user.NewService(users, document.NewAppointmentRepository(s), nil, nil, nil)
	return &fixture{handler: NewHandler(svc, sessions), users: users, sessions: sessions}
}

func (f *fixture) seed(t *testing.T, u *model.User) *model.User {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) publicRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation(middleware.DefaultValidationConfig()))
	f.handler.RegisterPublicRoutes(r.Group("/api/v1"))
	return r
}

func TestRegisterCreatesPendingUser(t *testing.T) {
	f := newFixture(t)
	r := f.publicRouter()

	w := handlertest.Do(r, http.MethodPost, "/api/v1/users/register", gin.H{
		"email": "Jane@Example.com", "fullName": "Jane Doe", "role": "patient",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var u model.User
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &u))
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, model.UserStatusPending, u.Status)

	w = handlertest.Do(r, http.MethodPost, "/api/v1/users/register", gin.H{
		"email": "jane@example.com", "fullName": "Jane Again", "role": "patient",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	f := newFixture(t)
	w := handlertest.Do(f.publicRouter(), http.MethodPost, "/api/v1/users/register", gin.H{
		"email": "root@example.com", "fullName": "Root", "role": "admin",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestApproveAndRejectAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(t, &model.User{Email: "a@example.com", FullName: "A", Role: model.UserRolePatient, Status: model.UserStatusPending})
	other := f.seed(t, &model.User{Email: "b@example.com", FullName: "B", Role: model.UserRoleDoctor, Department: "Cardiology", Status: model.UserStatusPending})

	w := handlertest.Do(handlertest.Router(f.handler, handlertest.As("d1", model.UserRoleDoctor)), http.MethodPost, "/api/v1/users/"+pending.ID+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := handlertest.Router(f.handler, handlertest.As("admin", model.UserRoleAdmin))
	w = handlertest.Do(admin, http.MethodPost, "/api/v1/users/"+pending.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := f.users.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusApproved, stored.Status)

	// Only pending users can be rejected.
	w = handlertest.Do(admin, http.MethodPost, "/api/v1/users/"+pending.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = handlertest.Do(admin, http.MethodPost, "/api/v1/users/"+other.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{other.ID}, f.sessions.forgotten)

	_, err = f.users.Get(context.Background(), other.ID)
	assert.Error(t, err)
}

func TestListDoctorsByDepartment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &model.User{Email: "c@example.com", FullName: "Dr C", Role: model.UserRoleDoctor, Department: "Cardiology", Status: model.UserStatusApproved})
	f.seed(t, &model.User{Email: "n@example.com", FullName: "Dr N", Role: model.UserRoleDoctor, Department: "Neurology", Status: model.UserStatusApproved})
	f.seed(t, &model.User{Email: "p@example.com", FullName: "Dr P", Role: model.UserRoleDoctor, Department: "Cardiology", Status: model.UserStatusPending})

	r := handlertest.Router(f.handler, handlertest.As("p1", model.UserRolePatient))
	w := handlertest.Do(r, http.MethodGet, "/api/v1/doctors?department=cardiology", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doctors []model.User
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr C", doctors[0].FullName)
}

func TestMeAndGetUser(t *testing.T) {
	f := newFixture(t)
	me := f.seed(t, &model.User{Email: "me@example.com", FullName: "Me", Role: model.UserRolePatient, Status: model.UserStatusApproved})
	other := f.seed(t, &model.User{Email: "o@example.com", FullName: "Other", Role: model.UserRolePatient, Status: model.UserStatusApproved})

	r := handlertest.Router(f.handler, handlertest.As(me.ID, model.UserRolePatient))
	w := handlertest.Do(r, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "me@example.com")

	w = handlertest.Do(r, http.MethodGet, "/api/v1/users/"+other.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = handlertest.Do(handlertest.Router(f.handler, handlertest.As("d1", model.UserRoleDoctor)), http.MethodGet, "/api/v1/users/"+other.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatsAndAdmitted(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &model.User{Email: "p@example.com", FullName: "P", Role: model.UserRolePatient, Status: model.UserStatusApproved})
	f.seed(t, &model.User{Email: "q@example.com", FullName: "Q", Role: model.UserRolePatient, Status: model.UserStatusApproved, Discharged: true})

	admin := handlertest.Router(f.handler, handlertest.As("admin", model.UserRoleAdmin))
	w := handlertest.Do(admin, http.MethodGet, "/api/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.AdminStats
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &stats))
	assert.Equal(t, 1, stats.Admitted)

	w = handlertest.Do(admin, http.MethodGet, "/api/v1/patients/admitted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var admitted []model.User
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &admitted))
	assert.Len(t, admitted, 1)

	w = handlertest.Do(handlertest.Router(f.handler, handlertest.As("p1", model.UserRolePatient)), http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
