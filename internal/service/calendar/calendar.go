// Package calendar produces the fixed catalog of bookable slot labels for a
// day from a morning window, an afternoon window and a slot duration.
package calendar

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

type Config struct {
	MorningStart        string `mapstructure:"morning_start" json:"morningStart"`
	MorningEnd          string `mapstructure:"morning_end" json:"morningEnd"`
	AfternoonStart      string `mapstructure:"afternoon_start" json:"afternoonStart"`
	AfternoonEnd        string `mapstructure:"afternoon_end" json:"afternoonEnd"`
	SlotDurationMinutes int    `mapstructure:"slot_duration_minutes" json:"slotDurationMinutes"`
}

// DefaultConfig is 08:00-13:00 and 14:00-16:00 in 30 minute slots.
func DefaultConfig() Config {
	return Config{
		MorningStart:        "08:00",
		MorningEnd:          "13:00",
		AfternoonStart:      "14:00",
		AfternoonEnd:        "16:00",
		SlotDurationMinutes: 30,
	}
}

// Policy holds the precomputed slot catalog. It is immutable.
type Policy struct {
	cfg   Config
	slots []string
	index map[string]struct{}
}

type window struct {
	start, end int
}

// NewPolicy validates cfg and computes its slots.
func NewPolicy(cfg Config) (*Policy, error) {
	if cfg.SlotDurationMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %d", cfg.SlotDurationMinutes)
	}

	morning, err := parseWindow("morning", cfg.MorningStart, cfg.MorningEnd)
	if err != nil {
		return nil, err
	}
	afternoon, err := parseWindow("afternoon", cfg.AfternoonStart, cfg.AfternoonEnd)
	if err != nil {
		return nil, err
	}
	if afternoon.start < morning.end {
		return nil, fmt.Errorf("afternoon window %s-%s overlaps morning window %s-%s",
			cfg.AfternoonStart, cfg.AfternoonEnd, cfg.MorningStart, cfg.MorningEnd)
	}

	p := &Policy{cfg: cfg, index: make(map[string]struct{})}
	for _, w := range []window{morning, afternoon} {
		for start := w.start; start+cfg.SlotDurationMinutes <= w.end; start += cfg.SlotDurationMinutes {
			label := formatMinutes(start)
			p.slots = append(p.slots, label)
			p.index[label] = struct{}{}
		}
	}
	return p, nil
}

// MustPolicy is NewPolicy for configs known to be valid.
func MustPolicy(cfg Config) *Policy {
	p, err := NewPolicy(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// Slots returns the ordered slot labels. The caller owns the returned slice.
func (p *Policy) Slots() []string {
	return append([]string(nil), p.slots...)
}

// Contains reports whether label is a bookable slot.
func (p *Policy) Contains(label string) bool {
	_, ok := p.index[label]
	return ok
}

func (p *Policy) SlotDuration() time.Duration {
	return time.Duration(p.cfg.SlotDurationMinutes) * time.Minute
}

func (p *Policy) Config() Config {
	return p.cfg
}

func parseWindow(name, start, end string) (window, error) {
	s, err := parseClock(start)
	if err != nil {
		return window{}, fmt.Errorf("invalid %s start: %w", name, err)
	}
	e, err := parseClock(end)
	if err != nil {
		return window{}, fmt.Errorf("invalid %s end: %w", name, err)
	}
	if e < s {
		return window{}, fmt.Errorf("%s window ends (%s) before it starts (%s)", name, end, start)
	}
	return window{start: s, end: e}, nil
}

// parseClock returns minutes since midnight for an HH:MM label.
func parseClock(label string) (int, error) {
	t, err := time.Parse(clockLayout, label)
	if err != nil {
		return 0, fmt.Errorf("%q is not an HH:MM time", label)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
