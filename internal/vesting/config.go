package vesting

import (
	"fmt"
	"time"
)

// Config is the serializable form of a Schedule.
//
// UnlockAt anchors interval slots and marks the linear start. A zero
// UnlockAt means "use the anchor passed to Resolve", which lets an LP lock
// be expressed relative to a settlement time that is not known up front.
type Config struct {
	Kind     Kind          `json:"kind"`
	UnlockAt time.Time     `json:"unlock_at,omitzero"`
	Slots    []Slot        `json:"slots,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Resolve builds and validates the Schedule described by c.
func (c Config) Resolve(anchor time.Time) (Schedule, error) {
	at := c.UnlockAt
	if at.IsZero() {
		at = anchor
	}
	switch c.Kind {
	case KindInterval:
		s := Interval{UnlockAt: at, Slots: append([]Slot(nil), c.Slots...)}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	case KindLinear:
		s := Linear{Start: at, End: at.Add(c.Duration)}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, c.Kind)
	}
}

// Immediate is a single slot releasing everything at the anchor.
func Immediate() Config {
	return Config{Kind: KindInterval, Slots: []Slot{{Pct: 1_000_000}}}
}
