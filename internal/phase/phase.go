// Package phase derives a campaign's current phase from its schedule.
//
// The phase is never stored. It is a pure function of the schedule, the
// whitelist window length, the cancellation flag and the current time, so
// two readers holding the same inputs always agree.
package phase

import (
	"errors"
	"fmt"
	"time"
)

// Phase is a campaign lifecycle phase.
type Phase int

const (
	Setup Phase = iota
	Subscription
	Tally
	IdoWhitelisted
	IdoPublic
	IdoEnded
	Cancelled
)

var names = map[Phase]string{
	Setup:          "setup",
	Subscription:   "subscription",
	Tally:          "tally",
	IdoWhitelisted: "ido_whitelisted",
	IdoPublic:      "ido_public",
	IdoEnded:       "ido_ended",
	Cancelled:      "cancelled",
}

func (p Phase) String() string {
	if s, ok := names[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Parse returns the phase named s.
func Parse(s string) (Phase, error) {
	for p, name := range names {
		if name == s {
			return p, nil
		}
	}
	return Setup, fmt.Errorf("unknown phase %q", s)
}

// Schedule holds the four campaign boundaries.
type Schedule struct {
	SubStart time.Time `json:"sub_start"`
	SubEnd   time.Time `json:"sub_end"`
	IdoStart time.Time `json:"ido_start"`
	IdoEnd   time.Time `json:"ido_end"`
}

var ErrInvalidSchedule = errors.New("invalid schedule")

// Validate checks that the boundaries strictly increase and that the
// whitelist window fits inside the IDO.
func (s Schedule) Validate(whitelist time.Duration) error {
	if s.SubStart.IsZero() {
		return fmt.Errorf("%w: subscription start is unset", ErrInvalidSchedule)
	}
	if !s.SubStart.Before(s.SubEnd) {
		return fmt.Errorf("%w: subscription must end after it starts", ErrInvalidSchedule)
	}
	if !s.SubEnd.Before(s.IdoStart) {
		return fmt.Errorf("%w: ido must start after subscription ends", ErrInvalidSchedule)
	}
	if !s.IdoStart.Before(s.IdoEnd) {
		return fmt.Errorf("%w: ido must end after it starts", ErrInvalidSchedule)
	}
	if whitelist < 0 || s.IdoStart.Add(whitelist).After(s.IdoEnd) {
		return fmt.Errorf("%w: whitelist window %s exceeds the ido", ErrInvalidSchedule, whitelist)
	}
	return nil
}

// At returns the phase in effect at now. Cancellation overrides every
// time-based phase.
//
// Windows are half-open: Subscription is [SubStart, SubEnd), the tally
// window is [SubEnd, IdoStart), IdoWhitelisted is [IdoStart,
// IdoStart+whitelist) and IdoPublic runs until IdoEnd.
func At(s Schedule, whitelist time.Duration, cancelled bool, now time.Time) Phase {
	switch {
	case cancelled:
		return Cancelled
	case now.Before(s.SubStart):
		return Setup
	case now.Before(s.SubEnd):
		return Subscription
	case now.Before(s.IdoStart):
		return Tally
	case now.Before(s.IdoStart.Add(whitelist)):
		return IdoWhitelisted
	case now.Before(s.IdoEnd):
		return IdoPublic
	default:
		return IdoEnded
	}
}

// Elapsed returns the time since IdoStart, or zero before it.
func Elapsed(s Schedule, now time.Time) time.Duration {
	if now.Before(s.IdoStart) {
		return 0
	}
	return now.Sub(s.IdoStart)
}

// Ido reports whether p is one of the two buying phases.
func (p Phase) Ido() bool {
	return p == IdoWhitelisted || p == IdoPublic
}
