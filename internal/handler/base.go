package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

// Actor returns the authenticated caller or records an Unauthorized error.
func Actor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := identity.Current(c)
	if !ok {
		Fail(c, apperrors.Unauthorized(nil))
	}
	return actor, ok
}

// SelfOrAdmin allows admins and the user identified by id.
func SelfOrAdmin(actor identity.Actor, id string) error {
	if actor.Is(model.UserRoleAdmin) || actor.ID == id {
		return nil
	}
	return apperrors.Forbidden("permission denied")
}

// Involved allows admins and the patient or doctor of a.
func Involved(actor identity.Actor, a *model.Appointment) error {
	switch {
	case actor.Is(model.UserRoleAdmin):
	case actor.Is(model.UserRolePatient) && a.PatientID == actor.ID:
	case actor.Is(model.UserRoleDoctor) && a.DoctorID == actor.ID:
	default:
		return apperrors.Forbidden("permission denied")
	}
	return nil
}

// PatientRecord allows staff and the patient identified by patientID.
func PatientRecord(actor identity.Actor, patientID string) error {
	if actor.Is(model.UserRoleAdmin) || actor.Is(model.UserRoleDoctor) || actor.ID == patientID {
		return nil
	}
	return apperrors.Forbidden("permission denied")
}

// Attachment writes a downloadable file.
func Attachment(c *gin.Context, fileName, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, data)
}
