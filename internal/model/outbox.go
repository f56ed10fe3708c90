package model

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types recorded by the workflow services.
const (
	EventAppointmentBooked   = "appointment.booked"
	EventAppointmentApproved = "appointment.approved"
	EventAppointmentRejected = "appointment.rejected"
	EventAppointmentDeleted  = "appointment.deleted"
	EventPatientDischarged   = "patient.discharged"
	EventUserRegistered      = "user.registered"
	EventUserApproved        = "user.approved"
	EventCertificateIssued   = "certificate.issued"
)

// EventTypes lists every event type, one broker channel each.
var EventTypes = []string{
	EventAppointmentBooked,
	EventAppointmentApproved,
	EventAppointmentRejected,
	EventAppointmentDeleted,
	EventPatientDischarged,
	EventUserRegistered,
	EventUserApproved,
	EventCertificateIssued,
}

type OutboxEvent struct {
	Base
	EventType    string          `json:"eventType"`
	Payload      json.RawMessage `json:"payload"`
	Status       OutboxStatus    `json:"status"`
	RetryCount   int             `json:"retryCount"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
}
