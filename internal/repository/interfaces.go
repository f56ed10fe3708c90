package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/store"
)

// All repository interfaces in one file. List methods always perform a fresh
// read of the shared store.
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id string) (*model.Appointment, error)
		List(ctx context.Context) ([]*model.Appointment, error)
		UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) error
		Subscribe(ctx context.Context, fn func([]*model.Appointment)) (store.Subscription, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
		Delete(ctx context.Context, id string) error
	}

	BillRepository interface {
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, id string) (*model.Bill, error)
		List(ctx context.Context) ([]*model.Bill, error)
		FindByAppointment(ctx context.Context, appointmentID string) (*model.Bill, error)
	}

	CertificateRepository interface {
		Create(ctx context.Context, cert *model.Certificate) error
		Get(ctx context.Context, id string) (*model.Certificate, error)
		List(ctx context.Context) ([]*model.Certificate, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string, retryCount int) error
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error)
	}
)
