package model

import "math"

type Bill struct {
	Base
	PatientID     string  `json:"patientId"`
	PatientName   string  `json:"patientName,omitempty"`
	AppointmentID string  `json:"appointmentId,omitempty"`
	RoomCharges   float64 `json:"roomCharges"`
	MedicineCosts float64 `json:"medicineCosts"`
	DoctorFees    float64 `json:"doctorFees"`
	Total         float64 `json:"total"`
}

// ClampCharge maps negative, NaN and infinite charges to zero.
func ClampCharge(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
