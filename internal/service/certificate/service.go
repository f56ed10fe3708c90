package certificate

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/service/event"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	pkgvalidator "github.com/jwalitptl/frontdesk-api/pkg/validator"
)

type Service struct {
	certs    repository.CertificateRepository
	users    repository.UserRepository
	events   event.Emitter
	logger   *logger.Logger
	validate *validator.Validate
}

func NewService(certs repository.CertificateRepository, users repository.UserRepository, events event.Emitter, log *logger.Logger) *Service {
	if events == nil {
		events = event.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		certs:    certs,
		users:    users,
		events:   events,
		logger:   log,
		validate: pkgvalidator.New(),
	}
}

// Create issues a certificate from doctorID to the requested patient. Fees
// are clamped to non-negative finite values before totalling.
func (s *Service) Create(ctx context.Context, doctorID string, req *model.CreateCertificateRequest) (*model.Certificate, error) {
	if req == nil {
		return nil, apperrors.Validation("certificate request is required", nil)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation("invalid certificate", err)
	}

	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != model.UserRoleDoctor {
		return nil, apperrors.Forbidden("only doctors can issue certificates")
	}
	patient, err := s.users.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != model.UserRolePatient {
		return nil, apperrors.Validation("certificate recipient is not a patient", nil)
	}

	consultation := model.ClampCharge(req.ConsultationFee)
	medication := model.ClampCharge(req.MedicationCost)
	cert := &model.Certificate{
		DoctorID:        doctor.ID,
		DoctorName:      doctor.FullName,
		PatientID:       patient.ID,
		PatientName:     patient.FullName,
		SessionDate:     req.SessionDate,
		Diagnosis:       req.Diagnosis,
		Medications:     req.Medications,
		ConsultationFee: consultation,
		MedicationCost:  medication,
		Total:           consultation + medication,
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, model.EventCertificateIssued, cert); err != nil {
		s.logger.Error(err, "failed to record certificate event", "certificate_id", cert.ID)
	}
	return cert, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Certificate, error) {
	return s.certs.Get(ctx, id)
}

// ListForPatient returns the patient's certificates, most recent session first.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*model.Certificate, error) {
	certs, err := s.certs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Certificate, 0, len(certs))
	for _, c := range certs {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SessionDate != out[j].SessionDate {
			return out[i].SessionDate > out[j].SessionDate
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
