package model

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusDeleted   AppointmentStatus = "deleted"
	// AppointmentStatusCancelled is only ever read from older records.
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusApproved, AppointmentStatusRejected, AppointmentStatusDeleted},
	AppointmentStatusApproved:  {AppointmentStatusCompleted, AppointmentStatusDeleted},
	AppointmentStatusRejected:  {AppointmentStatusDeleted},
	AppointmentStatusCompleted: {AppointmentStatusDeleted},
	AppointmentStatusCancelled: {AppointmentStatusDeleted},
}

// OccupiesSlot reports whether an appointment in this status keeps its slot taken.
func (s AppointmentStatus) OccupiesSlot() bool {
	switch s {
	case AppointmentStatusRejected, AppointmentStatusDeleted, AppointmentStatusCancelled:
		return false
	}
	return true
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FileRef is the stable reference returned once a file is durably stored.
type FileRef struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	FileName string `json:"fileName"`
}

type Appointment struct {
	Base
	PatientID    string            `json:"patientId"`
	DoctorID     string            `json:"doctorId"`
	PatientName  string            `json:"patientName"`
	DoctorName   string            `json:"doctorName"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	Description  string            `json:"description"`
	Status       AppointmentStatus `json:"status"`
	MedicalFiles []FileRef         `json:"medicalFiles"`
}

// MedicalFile is a file submitted with a booking that still has to be uploaded.
type MedicalFile struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data" validate:"required"`
}

type CreateAppointmentRequest struct {
	PatientID    string        `json:"patientId" validate:"required"`
	PatientName  string        `json:"patientName" validate:"required,max=200"`
	DoctorID     string        `json:"doctorId" validate:"required"`
	DoctorName   string        `json:"doctorName" validate:"required,max=200"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string        `json:"time" validate:"required,datetime=15:04"`
	Description  string        `json:"description" validate:"max=2000"`
	MedicalFiles []MedicalFile `json:"medicalFiles" validate:"max=5,dive"`
}

type AppointmentFilter struct {
	PatientID string            `form:"patientId"`
	DoctorID  string            `form:"doctorId"`
	Date      string            `form:"date"`
	Status    AppointmentStatus `form:"status"`
}

// Matches reports whether a satisfies every non-empty field of f.
func (f AppointmentFilter) Matches(a *Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// DoctorStats is the doctor dashboard summary.
type DoctorStats struct {
	Pending   int `json:"pending"`
	Today     int `json:"today"`
	Approved  int `json:"approved"`
	Completed int `json:"completed"`
}
