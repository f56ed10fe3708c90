package appointment

import (
	"context"
	"sort"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/lock"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/service/event"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

var transitionEvents = map[model.AppointmentStatus]string{
	model.AppointmentStatusApproved: model.EventAppointmentApproved,
	model.AppointmentStatusRejected: model.EventAppointmentRejected,
	model.AppointmentStatusDeleted:  model.EventAppointmentDeleted,
}

type Service struct {
	repo    repository.AppointmentRepository
	lock    lock.SlotLock
	events  event.Emitter
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithSlotLock releases slot locks when an appointment frees its slot.
func WithSlotLock(l lock.SlotLock) Option {
	return func(s *Service) { s.lock = l }
}

func WithEvents(e event.Emitter) Option {
	return func(s *Service) { s.events = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo repository.AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		events: event.Nop{},
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns appointments matching filter, newest first. Soft-deleted
// appointments are only returned when filtering on the deleted status.
func (s *Service) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	apps, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Appointment, 0, len(apps))
	for _, a := range apps {
		if a.Status == model.AppointmentStatusDeleted && filter.Status != model.AppointmentStatusDeleted {
			continue
		}
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Time > out[j].Time
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// Approve moves a pending appointment to approved.
func (s *Service) Approve(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusApproved)
}

// Reject moves a pending appointment to rejected, freeing its slot.
func (s *Service) Reject(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusRejected)
}

// SoftDelete marks the appointment deleted. The record is kept.
func (s *Service) SoftDelete(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusDeleted)
}

func (s *Service) transition(ctx context.Context, id string, next model.AppointmentStatus) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apt.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("appointment", string(apt.Status), string(next))
	}

	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	freed := apt.Status.OccupiesSlot() && !next.OccupiesSlot()
	apt.Status = next

	if freed && s.lock != nil {
		key := lock.SlotKey(apt.DoctorID, apt.Date, apt.Time)
		if err := s.lock.Release(ctx, key); err != nil {
			s.logger.Error(err, "failed to release slot lock", "key", key)
		}
	}
	if s.metrics != nil {
		s.metrics.AppointmentStatuses.WithLabelValues(string(next)).Inc()
	}
	if eventType, ok := transitionEvents[next]; ok {
		if err := s.events.Emit(ctx, eventType, apt); err != nil {
			s.logger.Error(err, "failed to record appointment event", "appointment_id", id)
		}
	}
	return apt, nil
}

// DoctorStats summarises a doctor's appointments for the dashboard.
func (s *Service) DoctorStats(ctx context.Context, doctorID string) (*model.DoctorStats, error) {
	apps, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	today := model.Today(s.now())
	stats := &model.DoctorStats{}
	for _, a := range apps {
		if a.DoctorID != doctorID {
			continue
		}
		switch a.Status {
		case model.AppointmentStatusPending:
			stats.Pending++
		case model.AppointmentStatusApproved:
			stats.Approved++
		case model.AppointmentStatusCompleted:
			stats.Completed++
		}
		if a.Date == today && a.Status.OccupiesSlot() {
			stats.Today++
		}
	}
	return stats, nil
}
