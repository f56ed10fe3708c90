package user

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/frontdesk-api/internal/email"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/service/event"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	pkgvalidator "github.com/jwalitptl/frontdesk-api/pkg/validator"
)

type UserServicer interface {
	Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Approve(ctx context.Context, id string) (*model.User, error)
	Reject(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]*model.User, error)
	ListDoctors(ctx context.Context, department string) ([]*model.User, error)
	ListAdmitted(ctx context.Context) ([]*model.User, error)
	Stats(ctx context.Context) (*model.AdminStats, error)
}

type Service struct {
	repo         repository.UserRepository
	appointments repository.AppointmentRepository
	emailSvc     email.Service
	events       event.Emitter
	logger       *logger.Logger
	validate     *validator.Validate
}

func NewService(repo repository.UserRepository, appointments repository.AppointmentRepository, emailSvc email.Service, events event.Emitter, log *logger.Logger) *Service {
	if events == nil {
		events = event.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		emailSvc:     emailSvc,
		events:       events,
		logger:       log,
		validate:     pkgvalidator.New(),
	}
}

// Register creates a pending patient or doctor. Admin accounts cannot be
// self-registered.
func (s *Service) Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error) {
	if req == nil {
		return nil, apperrors.Validation("registration request is required", nil)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation("invalid registration", err)
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, req.Email) {
			return nil, apperrors.Validation("email already registered", nil)
		}
	}

	u := &model.User{
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:   strings.TrimSpace(req.FullName),
		Role:       req.Role,
		Status:     model.UserStatusPending,
		Department: req.Department,
		Symptoms:   req.Symptoms,
		Phone:      req.Phone,
		Address:    req.Address,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, model.EventUserRegistered, u); err != nil {
		s.logger.Error(err, "failed to record registration event", "user_id", u.ID)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

// Approve activates a pending user and initialises the discharged flag.
func (s *Service) Approve(ctx context.Context, id string) (*model.User, error) {
	u, err := s.pending(ctx, id, model.UserStatusApproved)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"status":     model.UserStatusApproved,
		"discharged": false,
	}); err != nil {
		return nil, err
	}
	u.Status = model.UserStatusApproved
	u.Discharged = false

	if err := s.events.Emit(ctx, model.EventUserApproved, u); err != nil {
		s.logger.Error(err, "failed to record approval event", "user_id", id)
	}
	if s.emailSvc != nil && u.Email != "" {
		if err := s.emailSvc.SendApproval(ctx, u.Email, u.FullName); err != nil {
			s.logger.Error(err, "failed to send approval email", "user_id", id)
		}
	}
	return u, nil
}

// Reject deletes a pending registration.
func (s *Service) Reject(ctx context.Context, id string) error {
	if _, err := s.pending(ctx, id, "rejected"); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) pending(ctx context.Context, id, next string) (*model.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status != model.UserStatusPending {
		return nil, apperrors.InvalidTransition("user", u.Status, next)
	}
	return u, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*model.User, error) {
	return s.filter(ctx, func(u *model.User) bool {
		return u.Status == model.UserStatusPending
	})
}

// ListDoctors returns approved doctors, optionally limited to one department.
func (s *Service) ListDoctors(ctx context.Context, department string) ([]*model.User, error) {
	return s.filter(ctx, func(u *model.User) bool {
		return u.Role == model.UserRoleDoctor &&
			u.Status == model.UserStatusApproved &&
			(department == "" || strings.EqualFold(u.Department, department))
	})
}

// ListAdmitted returns approved patients who have not been discharged.
func (s *Service) ListAdmitted(ctx context.Context) ([]*model.User, error) {
	return s.filter(ctx, (*model.User).IsAdmitted)
}

func (s *Service) filter(ctx context.Context, keep func(*model.User) bool) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// Stats returns the admin dashboard counters.
func (s *Service) Stats(ctx context.Context) (*model.AdminStats, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.AdminStats{}
	for _, u := range users {
		switch {
		case u.Status == model.UserStatusPending:
			stats.Pending++
		case u.Role == model.UserRoleDoctor && u.Status == model.UserStatusApproved:
			stats.Doctors++
		case u.IsAdmitted():
			stats.Admitted++
		}
	}

	apps, err := s.appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range apps {
		if a.Status != model.AppointmentStatusDeleted {
			stats.Appointments++
		}
	}
	return stats, nil
}
