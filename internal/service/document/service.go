// Package document renders stored bills and certificates. Rendering reads
// records that already exist and never writes back to the store.
package document

import (
	"context"
	"fmt"

	"github.com/jwalitptl/frontdesk-api/internal/email"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/render"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type Service struct {
	bills    repository.BillRepository
	certs    repository.CertificateRepository
	renderer render.Renderer
}

func NewService(bills repository.BillRepository, certs repository.CertificateRepository, renderer render.Renderer) *Service {
	return &Service{bills: bills, certs: certs, renderer: renderer}
}

func (s *Service) Invoice(ctx context.Context, billID string) (*render.Document, error) {
	bill, err := s.bills.Get(ctx, billID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, render.KindInvoice, bill)
}

func (s *Service) Certificate(ctx context.Context, certID string) (*render.Document, error) {
	cert, err := s.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, render.KindCertificate, cert)
}

func (s *Service) render(ctx context.Context, kind render.Kind, data interface{}) (*render.Document, error) {
	doc, err := s.renderer.Render(ctx, kind, data)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("render %s: %w", kind, err))
	}
	return doc, nil
}

// InvoiceMailer emails the rendered invoice to a discharged patient.
type InvoiceMailer struct {
	renderer render.Renderer
	mailer   email.Service
}

func NewInvoiceMailer(renderer render.Renderer, mailer email.Service) *InvoiceMailer {
	return &InvoiceMailer{renderer: renderer, mailer: mailer}
}

func (m *InvoiceMailer) NotifyDischarge(ctx context.Context, patient *model.User, bill *model.Bill) error {
	if patient.Email == "" {
		return fmt.Errorf("patient %s has no email address", patient.ID)
	}
	doc, err := m.renderer.Render(ctx, render.KindInvoice, bill)
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}
	return m.mailer.SendInvoice(ctx, patient.Email, patient.FullName, email.Attachment{
		Name:        doc.FileName,
		ContentType: doc.ContentType,
		Data:        doc.Data,
	})
}
