package bill

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/handler"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/service/bill"
	"github.com/jwalitptl/frontdesk-api/internal/service/document"
)

type Handler struct {
	service   *bill.Service
	documents *document.Service
}

func NewHandler(service *bill.Service, documents *document.Service) *Handler {
	return &Handler{service: service, documents: documents}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/patients/:id/bills", h.ListForPatient)
	rg.GET("/bills/:id", h.GetBill)
	rg.GET("/bills/:id/invoice", h.DownloadInvoice)
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

	bills, err := h.service.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, bills)
}

func (h *Handler) GetBill(c *gin.Context) {
	if b, ok := h.load(c); ok {
		handler.OK(c, b)
	}
}

func (h *Handler) DownloadInvoice(c *gin.Context) {
	if _, ok := h.load(c); !ok {
		return
	}
	doc, err := h.documents.Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Attachment(c, doc.FileName, doc.ContentType, doc.Data)
}

func (h *Handler) load(c *gin.Context) (*model.Bill, bool) {
	actor, ok := handler.Actor(c)
	if !ok {
		return nil, false
	}
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return nil, false
	}
	if err := handler.PatientRecord(actor, b.PatientID); err != nil {
		handler.Fail(c, err)
		return nil, false
	}
	return b, true
}
