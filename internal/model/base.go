package model

import (
	"time"
)

// Base contains common fields for all stored records
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// Today returns the calendar day of t in DateLayout.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}
