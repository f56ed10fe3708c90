package appointment

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/handler"
	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/service/appointment"
	"github.com/jwalitptl/frontdesk-api/internal/service/booking"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

const (
	maxFilesPerBooking = 5
	defaultMaxFileSize = 10 << 20
)

type Handler struct {
	booking     *booking.Service
	service     *appointment.Service
	maxFileSize int64
}

func NewHandler(booking *booking.Service, service *appointment.Service) *Handler {
	return &Handler{
		booking:     booking,
		service:     service,
		maxFileSize: defaultMaxFileSize,
	}
}

// RegisterRoutes mounts the appointment routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	staff := identity.RequireRole(model.UserRoleDoctor, model.UserRoleAdmin)

	appointments := rg.Group("/appointments")
	{
		appointments.POST("", identity.RequireRole(model.UserRolePatient, model.UserRoleAdmin), h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/approve", staff, h.ApproveAppointment)
		appointments.POST("/:id/reject", staff, h.RejectAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}

	doctors := rg.Group("/doctors/:id")
	{
		doctors.GET("/slots", h.AvailableSlots)
		doctors.GET("/slots/watch", h.WatchSlots)
		doctors.GET("/stats", staff, h.DoctorStats)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	req, err := h.bindBooking(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if actor.Is(model.UserRolePatient) {
		req.PatientID = actor.ID
	}

	apt, err := h.booking.Book(c.Request.Context(), req)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSlotConflict) {
			h.conflict(c, err, req.DoctorID, req.Date)
			return
		}
		handler.Fail(c, err)
		return
	}
	handler.Created(c, apt)
}

// conflict replies 409 with the doctor's fresh availability so the client
// can offer another slot without a second round trip.
func (h *Handler) conflict(c *gin.Context, err error, doctorID, date string) {
	_ = c.Error(err)
	_, message := describe(err)
	body := gin.H{
		"status":    "error",
		"message":   message,
		"refresh":   true,
		"available": []string{},
	}
	if available, availErr := h.booking.AvailableSlots(c.Request.Context(), doctorID, date); availErr == nil {
		body["available"] = available
	}
	c.AbortWithStatusJSON(http.StatusConflict, body)
}

func describe(err error) (int, string) {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode(), appErr.Message
	}
	return http.StatusInternalServerError, err.Error()
}

func (h *Handler) bindBooking(c *gin.Context) (*model.CreateAppointmentRequest, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		var req model.CreateAppointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.BadRequest("invalid booking request", err)
		}
		return &req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.BadRequest("invalid multipart form", err)
	}
	req := &model.CreateAppointmentRequest{
		PatientID:   c.PostForm("patientId"),
		PatientName: c.PostForm("patientName"),
		DoctorID:    c.PostForm("doctorId"),
		DoctorName:  c.PostForm("doctorName"),
		Date:        c.PostForm("date"),
		Time:        c.PostForm("time"),
		Description: c.PostForm("description"),
	}

	headers := form.File["medicalFiles"]
	if len(headers) > maxFilesPerBooking {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d medical files are allowed", maxFilesPerBooking), nil)
	}
	for _, fh := range headers {
		file, err := h.readFile(fh)
		if err != nil {
			return nil, err
		}
		req.MedicalFiles = append(req.MedicalFiles, file)
	}
	return req, nil
}

func (h *Handler) readFile(fh *multipart.FileHeader) (model.MedicalFile, error) {
	if fh.Size > h.maxFileSize {
		return model.MedicalFile{}, apperrors.Validation(fmt.Sprintf("%s is larger than %d bytes", fh.Filename, h.maxFileSize), nil)
	}
	f, err := fh.Open()
	if err != nil {
		return model.MedicalFile{}, apperrors.BadRequest("unreadable file "+fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.MedicalFile{}, apperrors.BadRequest("unreadable file "+fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return model.MedicalFile{
		FileName:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var filter model.AppointmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid filter", err))
		return
	}
	switch actor.Role {
	case model.UserRolePatient:
		filter.PatientID = actor.ID
	case model.UserRoleDoctor:
		filter.DoctorID = actor.ID
	}

	appointments, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, apt, ok := h.load(c)
	if !ok {
		return
	}
	if err := handler.Involved(actor, apt); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) ApproveAppointment(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

func (h *Handler) RejectAppointment(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

// decide applies a doctor decision. Only the assigned doctor or an admin may decide.
func (h *Handler) decide(c *gin.Context, apply func(context.Context, string) (*model.Appointment, error)) {
	actor, apt, ok := h.load(c)
	if !ok {
		return
	}
	if !actor.Is(model.UserRoleAdmin) && apt.DoctorID != actor.ID {
		handler.Fail(c, apperrors.Forbidden("only the assigned doctor can decide on this appointment"))
		return
	}
	h.apply(c, apply)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	actor, apt, ok := h.load(c)
	if !ok {
		return
	}
	if err := handler.Involved(actor, apt); err != nil {
		handler.Fail(c, err)
		return
	}
	h.apply(c, h.service.SoftDelete)
}

func (h *Handler) apply(c *gin.Context, apply func(context.Context, string) (*model.Appointment, error)) {
	updated, err := apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) load(c *gin.Context) (identity.Actor, *model.Appointment, bool) {
	actor, ok := handler.Actor(c)
	if !ok {
		return actor, nil, false
	}
	apt, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return actor, nil, false
	}
	return actor, apt, true
}

func (h *Handler) AvailableSlots(c *gin.Context) {
	slots, err := h.booking.AvailableSlots(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, gin.H{
		"doctorId":  c.Param("id"),
		"date":      c.Query("date"),
		"available": slots,
	})
}

// WatchSlots streams the available slots as server-sent events, one "slots"
// event per change, until the client goes away.
func (h *Handler) WatchSlots(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Only the latest availability matters, so a slow client skips
	// intermediate snapshots.
	updates := make(chan []string, 1)
	sub, err := h.booking.WatchAvailability(ctx, c.Param("id"), c.Query("date"), func(slots []string) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- slots:
		default:
		}
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case slots := <-updates:
			c.SSEvent("slots", slots)
			return true
		}
	})
}

func (h *Handler) DoctorStats(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	doctorID := c.Param("id")
	if doctorID == "me" {
		doctorID = actor.ID
	}
	if err := handler.SelfOrAdmin(actor, doctorID); err != nil {
		handler.Fail(c, err)
		return
	}

	stats, err := h.service.DoctorStats(c.Request.Context(), doctorID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, stats)
}
