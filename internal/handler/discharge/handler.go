package discharge

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/handler"
	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/service/appointment"
	"github.com/jwalitptl/frontdesk-api/internal/service/discharge"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type Handler struct {
	service      *discharge.Service
	appointments *appointment.Service
}

func NewHandler(service *discharge.Service, appointments *appointment.Service) *Handler {
	return &Handler{service: service, appointments: appointments}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/discharges", identity.RequireRole(model.UserRoleDoctor, model.UserRoleAdmin), h.Discharge)
	rg.POST("/patients/:id/discharge/acknowledge", identity.RequireRole(model.UserRolePatient), h.Acknowledge)
}

// Discharge bills the patient, completes the appointment and marks the
// patient discharged. Doctors may only discharge from their own appointments.
func (h *Handler) Discharge(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req discharge.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid discharge request", err))
		return
	}
	if err := h.authorize(c, actor, req); err != nil {
		handler.Fail(c, err)
		return
	}

	res, err := h.service.Discharge(c.Request.Context(), req)
	if err != nil {
		var stepErr *discharge.StepError
		if errors.As(err, &stepErr) {
			h.stepFailed(c, stepErr, res)
			return
		}
		handler.Fail(c, err)
		return
	}
	handler.Created(c, res)
}

func (h *Handler) authorize(c *gin.Context, actor identity.Actor, req discharge.Request) error {
	if actor.Is(model.UserRoleAdmin) {
		return nil
	}
	if req.AppointmentID == "" {
		return apperrors.Forbidden("doctors discharge from an appointment")
	}
	apt, err := h.appointments.Get(c.Request.Context(), req.AppointmentID)
	if err != nil {
		return err
	}
	if apt.DoctorID != actor.ID {
		return apperrors.Forbidden("appointment belongs to another doctor")
	}
	return nil
}

// stepFailed reports which step failed and what was already written, so the
// caller can retry from a known state.
func (h *Handler) stepFailed(c *gin.Context, stepErr *discharge.StepError, res *discharge.Result) {
	_ = c.Error(stepErr)
	status, message := middleware.Describe(stepErr)
	completed := stepErr.Completed
	if completed == nil {
		completed = []discharge.Step{}
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status":    "error",
		"message":   message,
		"step":      stepErr.Step,
		"completed": completed,
		"data":      res,
	})
}

func (h *Handler) Acknowledge(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	if actor.ID != c.Param("id") {
		handler.Fail(c, apperrors.Forbidden("patients acknowledge only their own discharge"))
		return
	}
	if err := h.service.Acknowledge(c.Request.Context(), actor.ID); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, gin.H{"discharged": false})
}
