package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

func TestInvolved(t *testing.T) {
	a := &model.Appointment{PatientID: "p1", DoctorID: "d1"}

	assert.NoError(t, Involved(identity.Actor{ID: "x", Role: model.UserRoleAdmin}, a))
	assert.NoError(t, Involved(identity.Actor{ID: "p1", Role: model.UserRolePatient}, a))
	assert.NoError(t, Involved(identity.Actor{ID: "d1", Role: model.UserRoleDoctor}, a))

	err := Involved(identity.Actor{ID: "d1", Role: model.UserRolePatient}, a)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "ids only count for the matching role")
	assert.Error(t, Involved(identity.Actor{ID: "p2", Role: model.UserRolePatient}, a))
}

func TestSelfOrAdmin(t *testing.T) {
	assert.NoError(t, SelfOrAdmin(identity.Actor{ID: "u1", Role: model.UserRolePatient}, "u1"))
	assert.NoError(t, SelfOrAdmin(identity.Actor{ID: "a", Role: model.UserRoleAdmin}, "u1"))
	assert.Error(t, SelfOrAdmin(identity.Actor{ID: "u2", Role: model.UserRoleDoctor}, "u1"))
}

func TestPatientRecord(t *testing.T) {
	assert.NoError(t, PatientRecord(identity.Actor{ID: "d1", Role: model.UserRoleDoctor}, "p1"))
	assert.NoError(t, PatientRecord(identity.Actor{ID: "p1", Role: model.UserRolePatient}, "p1"))
	assert.Error(t, PatientRecord(identity.Actor{ID: "p2", Role: model.UserRolePatient}, "p1"))
}
