package document

import (
	"context"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/store"
)

type appointmentRepository struct {
	collection[model.Appointment]
}

type userRepository struct {
	collection[model.User]
}

type billRepository struct {
	collection[model.Bill]
}

type certificateRepository struct {
	collection[model.Certificate]
}

func NewAppointmentRepository(s store.Store) repository.AppointmentRepository {
	return &appointmentRepository{collection[model.Appointment]{store: s, name: store.CollectionAppointments, resource: "appointment"}}
}

func NewUserRepository(s store.Store) repository.UserRepository {
	return &userRepository{collection[model.User]{store: s, name: store.CollectionUsers, resource: "user"}}
}

func NewBillRepository(s store.Store) repository.BillRepository {
	return &billRepository{collection[model.Bill]{store: s, name: store.CollectionBills, resource: "bill"}}
}

func NewCertificateRepository(s store.Store) repository.CertificateRepository {
	return &certificateRepository{collection[model.Certificate]{store: s, name: store.CollectionCertificates, resource: "certificate"}}
}

func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := r.create(ctx, a)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	return r.get(ctx, id)
}

func (r *appointmentRepository) List(ctx context.Context) ([]*model.Appointment, error) {
	return r.list(ctx)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) error {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

// Subscribe decodes every snapshot. Snapshots that fail to decode are skipped.
func (r *appointmentRepository) Subscribe(ctx context.Context, fn func([]*model.Appointment)) (store.Subscription, error) {
	sub, err := r.store.Subscribe(ctx, r.name, func(snap store.Snapshot) {
		apps, err := decodeAll[model.Appointment](snap.Documents)
		if err != nil {
			return
		}
		fn(apps)
	})
	if err != nil {
		return nil, mapError("subscribe appointments", r.resource, err)
	}
	return sub, nil
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	id, err := r.create(ctx, u)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, id)
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	return r.list(ctx)
}

func (r *userRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.update(ctx, id, fields)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *billRepository) Create(ctx context.Context, b *model.Bill) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	id, err := r.create(ctx, b)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (r *billRepository) Get(ctx context.Context, id string) (*model.Bill, error) {
	return r.get(ctx, id)
}

func (r *billRepository) List(ctx context.Context) ([]*model.Bill, error) {
	return r.list(ctx)
}

// FindByAppointment returns nil, nil when no bill references appointmentID.
func (r *billRepository) FindByAppointment(ctx context.Context, appointmentID string) (*model.Bill, error) {
	bills, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		if b.AppointmentID == appointmentID {
			return b, nil
		}
	}
	return nil, nil
}

func (r *certificateRepository) Create(ctx context.Context, c *model.Certificate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id, err := r.create(ctx, c)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *certificateRepository) Get(ctx context.Context, id string) (*model.Certificate, error) {
	return r.get(ctx, id)
}

func (r *certificateRepository) List(ctx context.Context) ([]*model.Certificate, error) {
	return r.list(ctx)
}
