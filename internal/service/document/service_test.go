package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/email"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/render"
	"github.com/jwalitptl/frontdesk-api/internal/render/pdf"
	docrepo "github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, render.Kind, interface{}) (*render.Document, error) {
	return nil, errors.New("printer on fire")
}

type invoiceCapture struct {
	to         string
	attachment email.Attachment
}

func (c *invoiceCapture) SendApproval(context.Context, string, string) error { return nil }

func (c *invoiceCapture) SendInvoice(_ context.Context, to, _ string, a email.Attachment) error {
	c.to = to
	c.attachment = a
	return nil
}

func (c *invoiceCapture) SendCustom(context.Context, string, string, string, ...email.Attachment) error {
	return nil
}

func TestInvoiceAndCertificate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	bills := docrepo.NewBillRepository(s)
	certs := docrepo.NewCertificateRepository(s)

	bill := &model.Bill{PatientID: "p1", PatientName: "Jane Doe", Total: 1000}
	cert := &model.Certificate{PatientID: "p1", PatientName: "Jane Doe", Diagnosis: "ok"}
	require.NoError(t, bills.Create(ctx, bill))
	require.NoError(t, certs.Create(ctx, cert))

	svc := NewService(bills, certs, pdf.NewRenderer(""))

	inv, err := svc.Invoice(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice_Jane_Doe.pdf", inv.FileName)

	c, err := svc.Certificate(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "certificate_Jane_Doe.pdf", c.FileName)

	_, err = svc.Invoice(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestRenderFailureLeavesDataAlone(t *testing.T) {
	ctx := context.Background()
	bills := docrepo.NewBillRepository(memory.New())
	bill := &model.Bill{PatientID: "p1", Total: 42}
	require.NoError(t, bills.Create(ctx, bill))

	svc := NewService(bills, nil, failingRenderer{})
	_, err := svc.Invoice(ctx, bill.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))

	stored, err := bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, stored.Total)
}

func TestInvoiceMailer(t *testing.T) {
	capture := &invoiceCapture{}
	m := NewInvoiceMailer(pdf.NewRenderer(""), capture)
	patient := &model.User{Base: model.Base{ID: "p1"}, Email: "jane@example.com", FullName: "Jane Doe"}

	require.NoError(t, m.NotifyDischarge(context.Background(), patient, &model.Bill{PatientName: "Jane Doe", Total: 10}))
	assert.Equal(t, "jane@example.com", capture.to)
	assert.Equal(t, "invoice_Jane_Doe.pdf", capture.attachment.Name)
	assert.Equal(t, "application/pdf", capture.attachment.ContentType)

	assert.Error(t, m.NotifyDischarge(context.Background(), &model.User{}, &model.Bill{}))
}
