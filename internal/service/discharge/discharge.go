// Package discharge closes out a patient's visit: it bills the patient,
// completes the appointment and marks the patient discharged.
//
// The three writes are independent. A failure is reported with the step that
// failed and nothing written by earlier steps is rolled back. Retrying a
// discharge for the same appointment reuses the bill created by the earlier
// attempt.
package discharge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/service/event"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

const DefaultWriteTimeout = 30 * time.Second

type Step string

const (
	StepCheck               Step = "check"
	StepCreateBill          Step = "create_bill"
	StepCompleteAppointment Step = "complete_appointment"
	StepMarkDischarged      Step = "mark_discharged"
)

// StepError reports the step that failed. Steps listed in Completed have
// already been written.
type StepError struct {
	Step      Step
	Completed []Step
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("discharge failed at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusCode follows the wrapped application error.
func (e *StepError) StatusCode() int {
	if appErr, ok := apperrors.As(e.Err); ok {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

type Request struct {
	AppointmentID string  `json:"appointmentId"`
	PatientID     string  `json:"patientId"`
	RoomCharges   float64 `json:"roomCharges"`
	MedicineCosts float64 `json:"medicineCosts"`
	DoctorFees    float64 `json:"doctorFees"`
}

type Result struct {
	Bill       *model.Bill `json:"bill"`
	BillReused bool        `json:"billReused"`
	Completed  []Step      `json:"completed"`
}

// Notifier is told about successful discharges. Its failures are logged only.
type Notifier interface {
	NotifyDischarge(ctx context.Context, patient *model.User, bill *model.Bill) error
}

type Service struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	bills        repository.BillRepository
	events       event.Emitter
	notifier     Notifier
	metrics      *metrics.Metrics
	logger       *logger.Logger
	writeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Service)

func WithEvents(e event.Emitter) Option {
	return func(s *Service) { s.events = e }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func NewService(appointments repository.AppointmentRepository, users repository.UserRepository, bills repository.BillRepository, opts ...Option) *Service {
	s := &Service{
		appointments: appointments,
		users:        users,
		bills:        bills,
		events:       event.Nop{},
		logger:       logger.Nop(),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewBill clamps every charge and sums them.
func NewBill(patientID, appointmentID string, room, medicine, doctor float64) *model.Bill {
	b := &model.Bill{
		PatientID:     patientID,
		AppointmentID: appointmentID,
		RoomCharges:   model.ClampCharge(room),
		MedicineCosts: model.ClampCharge(medicine),
		DoctorFees:    model.ClampCharge(doctor),
	}
	b.Total = b.RoomCharges + b.MedicineCosts + b.DoctorFees
	return b
}

func (s *Service) Discharge(ctx context.Context, req Request) (*Result, error) {
	res, err := s.discharge(ctx, req)
	if s.metrics != nil {
		label := "success"
		if stepErr, ok := err.(*StepError); ok {
			label = string(stepErr.Step)
		}
		s.metrics.DischargesTotal.WithLabelValues(label).Inc()
	}
	return res, err
}

func (s *Service) discharge(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	fail := func(step Step, err error) (*Result, error) {
		return res, &StepError{Step: step, Completed: append([]Step(nil), res.Completed...), Err: err}
	}

	if req.PatientID == "" {
		return fail(StepCheck, apperrors.Validation("patientId is required", nil))
	}
	patient, err := s.loadPatient(ctx, req.PatientID)
	if err != nil {
		return fail(StepCheck, err)
	}
	var apt *model.Appointment
	if req.AppointmentID != "" {
		if apt, err = s.loadAppointment(ctx, req); err != nil {
			return fail(StepCheck, err)
		}
	}

	bill, reused, err := s.createBill(ctx, req, patient.FullName)
	if err != nil {
		return fail(StepCreateBill, err)
	}
	res.Bill, res.BillReused = bill, reused
	res.Completed = append(res.Completed, StepCreateBill)

	if apt != nil && apt.Status != model.AppointmentStatusCompleted {
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.appointments.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
		})
		if err != nil {
			return fail(StepCompleteAppointment, err)
		}
		res.Completed = append(res.Completed, StepCompleteAppointment)
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdateFields(ctx, patient.ID, map[string]interface{}{"discharged": true})
	})
	if err != nil {
		return fail(StepMarkDischarged, err)
	}
	res.Completed = append(res.Completed, StepMarkDischarged)
	patient.Discharged = true

	s.logger.Info("patient discharged",
		"patient_id", patient.ID,
		"appointment_id", req.AppointmentID,
		"bill_id", bill.ID,
		"total", bill.Total)
	if err := s.events.Emit(ctx, model.EventPatientDischarged, bill); err != nil {
		s.logger.Error(err, "failed to record discharge event", "bill_id", bill.ID)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyDischarge(ctx, patient, bill); err != nil {
			s.logger.Error(err, "failed to send discharge notice", "bill_id", bill.ID)
		}
	}
	return res, nil
}

func (s *Service) loadPatient(ctx context.Context, id string) (*model.User, error) {
	var patient *model.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		patient, err = s.users.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if patient.Role != model.UserRolePatient {
		return nil, apperrors.Validation(fmt.Sprintf("user %s is not a patient", id), nil)
	}
	return patient, nil
}

// loadAppointment accepts an approved appointment, or a completed one so a
// discharge interrupted after completing it can be retried.
func (s *Service) loadAppointment(ctx context.Context, req Request) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		apt, err = s.appointments.Get(ctx, req.AppointmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if apt.PatientID != req.PatientID {
		return nil, apperrors.Validation("appointment does not belong to patient", nil)
	}
	switch apt.Status {
	case model.AppointmentStatusApproved, model.AppointmentStatusCompleted:
		return apt, nil
	default:
		return nil, apperrors.InvalidTransition("appointment", string(apt.Status), string(model.AppointmentStatusCompleted))
	}
}

func (s *Service) createBill(ctx context.Context, req Request, patientName string) (*model.Bill, bool, error) {
	if req.AppointmentID != "" {
		var existing *model.Bill
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			existing, err = s.bills.FindByAppointment(ctx, req.AppointmentID)
			return err
		})
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	bill := NewBill(req.PatientID, req.AppointmentID, req.RoomCharges, req.MedicineCosts, req.DoctorFees)
	bill.PatientName = patientName
	bill.CreatedAt = s.now().UTC()
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.bills.Create(ctx, bill)
	})
	if err != nil {
		return nil, false, err
	}
	return bill, false, nil
}

// Acknowledge clears the patient's discharged flag. It touches nothing else.
func (s *Service) Acknowledge(ctx context.Context, patientID string) error {
	if patientID == "" {
		return apperrors.Validation("patientId is required", nil)
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdateFields(ctx, patientID, map[string]interface{}{"discharged": false})
	})
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return fn(ctx)
}
