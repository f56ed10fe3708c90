// Package availability derives which slots are taken for a doctor on a day.
// Everything here is a pure function of the appointment set it is given.
package availability

import (
	"sort"

	"github.com/jwalitptl/frontdesk-api/internal/model"
)

// Set is a set of slot labels.
type Set map[string]struct{}

func (s Set) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted returns the labels in lexical order, which is clock order for HH:MM.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for label := range s {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Taken returns the slot labels occupied for doctorID on date. Rejected,
// deleted and cancelled appointments free their slot; every other status
// keeps it, completed included.
func Taken(appointments []*model.Appointment, doctorID, date string) Set {
	taken := make(Set)
	for _, a := range appointments {
		if a == nil || a.DoctorID != doctorID || a.Date != date {
			continue
		}
		if a.Status.OccupiesSlot() {
			taken[a.Time] = struct{}{}
		}
	}
	return taken
}

// Available returns slots minus taken, preserving the order of slots.
func Available(slots []string, taken Set) []string {
	out := make([]string, 0, len(slots))
	for _, label := range slots {
		if !taken.Has(label) {
			out = append(out, label)
		}
	}
	return out
}
