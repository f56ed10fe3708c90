package certificate

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/handler"
	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/service/certificate"
	"github.com/jwalitptl/frontdesk-api/internal/service/document"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type Handler struct {
	service   *certificate.Service
	documents *document.Service
}

func NewHandler(service *certificate.Service, documents *document.Service) *Handler {
	return &Handler{service: service, documents: documents}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/certificates", identity.RequireRole(model.UserRoleDoctor), h.Issue)
	rg.GET("/certificates/:id", h.GetCertificate)
	rg.GET("/certificates/:id/pdf", h.DownloadCertificate)
	rg.GET("/patients/:id/certificates", h.ListForPatient)
}

// Issue records a certificate signed by the calling doctor.
func (h *Handler) Issue(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.CreateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid certificate request", err))
		return
	}

	cert, err := h.service.Create(c.Request.Context(), actor.ID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, cert)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	patientID := c.Param("id")
	if err := handler.PatientRecord(actor, patientID); err != nil {
		handler.Fail(c, err)
		return
	}

	certs, err := h.service.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, certs)
}

func (h *Handler) GetCertificate(c *gin.Context) {
	if cert, ok := h.load(c); ok {
		handler.OK(c, cert)
	}
}

func (h *Handler) DownloadCertificate(c *gin.Context) {
	if _, ok := h.load(c); !ok {
		return
	}
	doc, err := h.documents.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Attachment(c, doc.FileName, doc.ContentType, doc.Data)
}

func (h *Handler) load(c *gin.Context) (*model.Certificate, bool) {
	actor, ok := handler.Actor(c)
	if !ok {
		return nil, false
	}
	cert, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return nil, false
	}
	if err := handler.PatientRecord(actor, cert.PatientID); err != nil {
		handler.Fail(c, err)
		return nil, false
	}
	return cert, true
}
