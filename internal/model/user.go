package model

// User status constants
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
)

// User role constants
const (
	UserRoleAdmin   = "admin"
	UserRoleDoctor  = "doctor"
	UserRolePatient = "patient"
)

// User represents a system user
type User struct {
	Base
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Discharged bool   `json:"discharged"`
	Department string `json:"department,omitempty"`
	Symptoms   string `json:"symptoms,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// IsAdmitted reports whether u is an approved patient who has not been discharged.
func (u *User) IsAdmitted() bool {
	return u.Role == UserRolePatient && u.Status == UserStatusApproved && !u.Discharged
}

type RegisterUserRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"fullName" validate:"required,max=200"`
	Role       string `json:"role" validate:"required,oneof=patient doctor"`
	Department string `json:"department" validate:"required_if=Role doctor"`
	Symptoms   string `json:"symptoms" validate:"max=2000"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Address    string `json:"address" validate:"omitempty,max=500"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Doctors      int `json:"doctors"`
	Admitted     int `json:"admitted"`
	Pending      int `json:"pending"`
	Appointments int `json:"appointments"`
}
