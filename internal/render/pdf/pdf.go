package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/render"
)

const contentType = "application/pdf"

type Renderer struct {
	clinic string
}

func NewRenderer(clinic string) *Renderer {
	if clinic == "" {
		clinic = "Online Clinic"
	}
	return &Renderer{clinic: clinic}
}

func (r *Renderer) Render(ctx context.Context, kind render.Kind, data interface{}) (*render.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch kind {
	case render.KindInvoice:
		bill, ok := data.(*model.Bill)
		if !ok || bill == nil {
			return nil, fmt.Errorf("invoice needs a bill, got %T", data)
		}
		return r.invoice(bill)
	case render.KindCertificate:
		cert, ok := data.(*model.Certificate)
		if !ok || cert == nil {
			return nil, fmt.Errorf("certificate needs a certificate, got %T", data)
		}
		return r.certificate(cert)
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
}

func (r *Renderer) invoice(b *model.Bill) (*render.Document, error) {
	pdf := r.page("Invoice")

	addDetail(pdf, "Invoice", b.ID, true)
	addDetail(pdf, "Patient", b.PatientName, false)
	addDetail(pdf, "Date", b.CreatedAt.Format(model.DateLayout), false)
	if b.AppointmentID != "" {
		addDetail(pdf, "Appointment", b.AppointmentID, false)
	}
	pdf.Ln(4)

	addDetail(pdf, "Charges", "Amount", true)
	addDetail(pdf, "Room charges", money(b.RoomCharges), false)
	addDetail(pdf, "Medicine costs", money(b.MedicineCosts), false)
	addDetail(pdf, "Doctor fees", money(b.DoctorFees), false)
	total(pdf, b.Total)

	footer(pdf, "This is a computer generated invoice")
	return output(pdf, render.FileName(render.KindInvoice, b.PatientName, "pdf"))
}

func (r *Renderer) certificate(c *model.Certificate) (*render.Document, error) {
	pdf := r.page("Medical Certificate")

	addDetail(pdf, "Certificate", c.ID, true)
	addDetail(pdf, "Patient", c.PatientName, false)
	addDetail(pdf, "Doctor", c.DoctorName, false)
	addDetail(pdf, "Session date", c.SessionDate, false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Diagnosis", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, c.Diagnosis, "", "L", false)
	if c.Medications != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Medications", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, c.Medications, "", "L", false)
	}
	pdf.Ln(4)

	addDetail(pdf, "Charges", "Amount", true)
	addDetail(pdf, "Consultation fee", money(c.ConsultationFee), false)
	addDetail(pdf, "Medication cost", money(c.MedicationCost), false)
	total(pdf, c.Total)

	footer(pdf, "This is a computer generated certificate")
	return output(pdf, render.FileName(render.KindCertificate, c.PatientName, "pdf"))
}

func (r *Renderer) page(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 70, 140)
	pdf.CellFormat(0, 10, r.clinic, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, title, "1", 1, "C", false, 0, "")
	pdf.Ln(4)
	return pdf
}

func addDetail(pdf *gofpdf.Fpdf, label, value string, isHeader bool) {
	if isHeader {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(255, 255, 255)
	} else {
		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(240, 240, 240)
	}
	pdf.CellFormat(60, 9, label, "1", 0, "", !isHeader, 0, "")
	pdf.CellFormat(0, 9, value, "1", 1, "", !isHeader, 0, "")
}

func total(pdf *gofpdf.Fpdf, amount float64) {
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(60, 10, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 10, money(amount), "1", 1, "", false, 0, "")
}

func footer(pdf *gofpdf.Fpdf, text string) {
	pdf.SetY(pdf.GetY() + 12)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 10, text, "", 1, "R", false, 0, "")
}

func output(pdf *gofpdf.Fpdf, fileName string) (*render.Document, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", fileName, err)
	}
	return &render.Document{FileName: fileName, ContentType: contentType, Data: buf.Bytes()}, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
