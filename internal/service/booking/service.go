// Package booking admits new appointments into the shared calendar.
//
// Without a slot lock the guard is best effort: it re-reads the appointment
// set immediately before writing, so two guards whose reads interleave can
// both admit the same slot. With a slot lock the admission is atomic.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/frontdesk-api/internal/filestore"
	"github.com/jwalitptl/frontdesk-api/internal/lock"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/service/availability"
	"github.com/jwalitptl/frontdesk-api/internal/service/calendar"
	"github.com/jwalitptl/frontdesk-api/internal/service/event"
	"github.com/jwalitptl/frontdesk-api/internal/store"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
	pkgvalidator "github.com/jwalitptl/frontdesk-api/pkg/validator"
)

const (
	DefaultUploadTimeout = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	uploadFolder         = "medical-files"
)

type Config struct {
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	// LockTTL bounds how long a slot lock lives. Zero keeps it until released.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type Service struct {
	repo     repository.AppointmentRepository
	files    filestore.FileStore
	policy   *calendar.Policy
	cfg      Config
	lock     lock.SlotLock
	events   event.Emitter
	metrics  *metrics.Metrics
	logger   *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

// WithSlotLock turns on strict admission.
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

func NewService(repo repository.AppointmentRepository, files filestore.FileStore, policy *calendar.Policy, cfg Config, opts ...Option) *Service {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	s := &Service{
		repo:     repo,
		files:    files,
		policy:   policy,
		cfg:      cfg,
		events:   event.Nop{},
		logger:   logger.Nop(),
		validate: pkgvalidator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether admissions go through a slot lock.
func (s *Service) Strict() bool {
	return s.lock != nil
}

// Book validates req, uploads its files and writes a pending appointment if
// the slot is still free on a fresh read.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	start := s.now()
	apt, err := s.book(ctx, req)
	s.observe(start, err)
	return apt, err
}

func (s *Service) book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	// Fail fast before spending time on uploads.
	if err := s.checkFree(ctx, req.DoctorID, req.Date, req.Time); err != nil {
		return nil, err
	}

	refs, err := s.uploadFiles(ctx, req.PatientID, req.MedicalFiles)
	if err != nil {
		return nil, err
	}

	if err := s.checkFree(ctx, req.DoctorID, req.Date, req.Time); err != nil {
		return nil, err
	}

	var key string
	if s.lock != nil {
		key = lock.SlotKey(req.DoctorID, req.Date, req.Time)
		ok, err := s.lock.Acquire(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return nil, apperrors.RemoteUnavailable("acquire slot lock", err)
		}
		if !ok {
			return nil, apperrors.SlotConflict(req.DoctorID, req.Date, req.Time)
		}
	}

	apt := &model.Appointment{
		Base:         model.Base{CreatedAt: s.now().UTC()},
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		PatientName:  req.PatientName,
		DoctorName:   req.DoctorName,
		Date:         req.Date,
		Time:         req.Time,
		Description:  req.Description,
		Status:       model.AppointmentStatusPending,
		MedicalFiles: refs,
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.repo.Create(writeCtx, apt); err != nil {
		if key != "" {
			s.releaseLock(key)
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID,
		"doctor_id", apt.DoctorID,
		"date", apt.Date,
		"time", apt.Time)
	if err := s.events.Emit(ctx, model.EventAppointmentBooked, apt); err != nil {
		s.logger.Error(err, "failed to record booking event", "appointment_id", apt.ID)
	}
	return apt, nil
}

func (s *Service) validateRequest(req *model.CreateAppointmentRequest) error {
	if req == nil {
		return apperrors.Validation("booking request is required", nil)
	}
	if err := s.validate.Struct(req); err != nil {
		return apperrors.Validation("invalid booking request", err)
	}
	if !s.policy.Contains(req.Time) {
		return apperrors.Validation(fmt.Sprintf("%q is not a bookable slot", req.Time), nil)
	}
	return nil
}

// checkFree re-reads the full appointment set and fails with SlotConflict
// when the slot is taken.
func (s *Service) checkFree(ctx context.Context, doctorID, date, slot string) error {
	taken, err := s.taken(ctx, doctorID, date)
	if err != nil {
		return err
	}
	if taken.Has(slot) {
		return apperrors.SlotConflict(doctorID, date, slot)
	}
	return nil
}

func (s *Service) taken(ctx context.Context, doctorID, date string) (availability.Set, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	apps, err := s.repo.List(readCtx)
	if err != nil {
		return nil, err
	}
	return availability.Taken(apps, doctorID, date), nil
}

// uploadFiles uploads every file or none of their references are returned.
func (s *Service) uploadFiles(ctx context.Context, patientID string, files []model.MedicalFile) ([]model.FileRef, error) {
	refs := make([]model.FileRef, 0, len(files))
	for _, f := range files {
		uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
		ref, err := s.files.Upload(uploadCtx, f.Data, filestore.Destination{
			Folder:      uploadFolder + "/" + patientID,
			FileName:    f.FileName,
			ContentType: f.ContentType,
		})
		cancel()
		if err != nil {
			if s.metrics != nil {
				s.metrics.UploadFailures.Inc()
			}
			return nil, apperrors.UploadFailure(f.FileName, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Service) releaseLock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.lock.Release(ctx, key); err != nil {
		s.logger.Error(err, "failed to release slot lock", "key", key)
	}
}

// AvailableSlots returns the calendar slots not taken for doctorID on date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	if err := validateDay(doctorID, date); err != nil {
		return nil, err
	}
	taken, err := s.taken(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return availability.Available(s.policy.Slots(), taken), nil
}

// WatchAvailability calls fn with the available slots on every change to the
// appointment set until the subscription is cancelled or ctx is done.
func (s *Service) WatchAvailability(ctx context.Context, doctorID, date string, fn func([]string)) (store.Subscription, error) {
	if err := validateDay(doctorID, date); err != nil {
		return nil, err
	}
	slots := s.policy.Slots()
	return s.repo.Subscribe(ctx, func(apps []*model.Appointment) {
		fn(availability.Available(slots, availability.Taken(apps, doctorID, date)))
	})
}

func validateDay(doctorID, date string) error {
	if doctorID == "" {
		return apperrors.Validation("doctorId is required", nil)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperrors.Validation("date must be YYYY-MM-DD", err)
	}
	return nil
}

func (s *Service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	switch {
	case err == nil:
		s.metrics.BookingLatency.Observe(s.now().Sub(start).Seconds())
	case apperrors.Is(err, apperrors.ErrSlotConflict):
		result = "conflict"
		s.metrics.SlotConflicts.Inc()
	case apperrors.Is(err, apperrors.ErrUploadFailure):
		result = "upload_failure"
	case apperrors.Is(err, apperrors.ErrValidation):
		result = "invalid"
	default:
		result = "error"
	}
	s.metrics.BookingsTotal.WithLabelValues(result).Inc()
}
