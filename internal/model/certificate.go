package model

type Certificate struct {
	Base
	DoctorID        string  `json:"doctorId"`
	DoctorName      string  `json:"doctorName"`
	PatientID       string  `json:"patientId"`
	PatientName     string  `json:"patientName"`
	SessionDate     string  `json:"sessionDate"`
	Diagnosis       string  `json:"diagnosis"`
	Medications     string  `json:"medications"`
	ConsultationFee float64 `json:"consultationFee"`
	MedicationCost  float64 `json:"medicationCost"`
	Total           float64 `json:"total"`
}

type CreateCertificateRequest struct {
	PatientID       string  `json:"patientId" validate:"required"`
	SessionDate     string  `json:"sessionDate" validate:"required,datetime=2006-01-02"`
	Diagnosis       string  `json:"diagnosis" validate:"required,max=4000"`
	Medications     string  `json:"medications" validate:"max=4000"`
	ConsultationFee float64 `json:"consultationFee"`
	MedicationCost  float64 `json:"medicationCost"`
}
