package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func TestSendInvoiceAttachesDocument(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "clinic@example.com", "")

	err := svc.SendInvoice(context.Background(), "jane@example.com", "Jane", Attachment{
		Name: "invoice_Jane_Doe.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3"),
	})
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)

	m := sender.messages[0]
	assert.Equal(t, []string{"jane@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Online Clinic invoice"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "invoice_Jane_Doe.pdf")
}

func TestSendErrorIsWrapped(t *testing.T) {
	svc := NewService(&captureSender{err: errors.New("auth failed")}, "a@b.c", "Clinic")
	err := svc.SendApproval(context.Background(), "x@y.z", "X")
	assert.ErrorContains(t, err, "auth failed")
}
