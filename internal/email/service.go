package email

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service interface {
	SendApproval(ctx context.Context, to string, name string) error
	SendInvoice(ctx context.Context, to string, name string, invoice Attachment) error
	SendCustom(ctx context.Context, to string, subject string, content string, attachments ...Attachment) error
}

type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Clinic   string `mapstructure:"clinic"`
}

// Sender abstracts gomail's dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	sender Sender
	from   string
	clinic string
}

func NewSMTPService(cfg Config) *SMTPService {
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.Clinic)
}

func NewService(sender Sender, from, clinic string) *SMTPService {
	if clinic == "" {
		clinic = "Online Clinic"
	}
	return &SMTPService{sender: sender, from: from, clinic: clinic}
}

func (s *SMTPService) SendApproval(ctx context.Context, to string, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour %s account has been approved. You can now sign in.\n", name, s.clinic)
	return s.SendCustom(ctx, to, "Your account has been approved", body)
}

func (s *SMTPService) SendInvoice(ctx context.Context, to string, name string, invoice Attachment) error {
	body := fmt.Sprintf("Hello %s,\n\nPlease find your invoice attached.\n\nThank you for choosing %s. Get well soon!\n", name, s.clinic)
	return s.SendCustom(ctx, to, s.clinic+" invoice", body, invoice)
}

// SendCustom returns when the message is sent or ctx is done.
func (s *SMTPService) SendCustom(ctx context.Context, to string, subject string, content string, attachments ...Attachment) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	for _, a := range attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Name, settings...)
	}

	done := make(chan error, 1)
	go func() { done <- s.sender.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("error sending email: %w", err)
		}
		return nil
	}
}
