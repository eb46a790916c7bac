// Package vesting computes how much of an entitlement has unlocked.
//
// A Schedule is a strategy: Interval releases fixed percentages at
// discrete offsets from an unlock time, Linear releases continuously
// between a start and an end. Both are unit-agnostic; callers decide
// whether the entitlement is denominated in capital, tokens or LP units.
//
// Invariants shared by every schedule:
//   - vested(t) is non-decreasing in t
//   - vested(t) never exceeds the entitlement
//   - once fully unlocked, vested equals the entitlement exactly
package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/launchpad/internal/amount"
)

// Kind names a schedule strategy.
type Kind string

const (
	KindInterval Kind = "interval"
	KindLinear   Kind = "linear"
)

var (
	ErrInvalidSchedule = errors.New("invalid vesting schedule")
	ErrNothingEntitled = errors.New("nothing entitled")
	ErrNothingToClaim  = errors.New("nothing to claim")
)

// Position is one claimant's progress through a schedule.
type Position struct {
	Entitlement amount.Amount `json:"entitlement"`
	Claimed     amount.Amount `json:"claimed"`
	NextSlot    int           `json:"next_slot"`
}

// Quote is the answer to "what can be claimed now".
type Quote struct {
	Vested    amount.Amount `json:"vested"`
	Claimed   amount.Amount `json:"claimed"`
	Claimable amount.Amount `json:"claimable"`

	// NewSlots and StartIndex describe interval schedules: how many slots
	// unlocked since the last claim and the first of them.
	NewSlots   int `json:"new_slots"`
	StartIndex int `json:"start_index"`
}

// Schedule computes vested amounts.
type Schedule interface {
	Kind() Kind
	// Quote reports the claimable amount for p at now.
	Quote(p Position, now time.Time) (Quote, error)
}

// Claim applies a claim at now and returns the advanced position along
// with the quote that was paid out.
func Claim(s Schedule, p Position, now time.Time) (Position, Quote, error) {
	if p.Entitlement.IsZero() {
		return p, Quote{}, ErrNothingEntitled
	}
	q, err := s.Quote(p, now)
	if err != nil {
		return p, Quote{}, err
	}
	if q.Claimable.IsZero() {
		return p, q, ErrNothingToClaim
	}
	next := p
	next.Claimed = q.Vested
	next.NextSlot = q.StartIndex + q.NewSlots
	return next, q, nil
}

func quote(p Position, vested amount.Amount) (Quote, error) {
	claimable, err := vested.Sub(p.Claimed)
	if err != nil {
		return Quote{}, fmt.Errorf("claimed %s exceeds vested %s: %w", p.Claimed, vested, err)
	}
	return Quote{Vested: vested, Claimed: p.Claimed, Claimable: claimable}, nil
}

// Slot is one interval release step.
type Slot struct {
	Pct    uint32        `json:"pct"`
	Offset time.Duration `json:"offset"`
}

// Interval releases Slots[i].Pct of the entitlement at UnlockAt+Offset.
type Interval struct {
	UnlockAt time.Time
	Slots    []Slot
}

func (Interval) Kind() Kind { return KindInterval }

// Validate checks that percentages sum to 100% and offsets never go
// backwards.
func (s Interval) Validate() error {
	if len(s.Slots) == 0 {
		return fmt.Errorf("%w: no slots", ErrInvalidSchedule)
	}
	var total uint64
	var prev time.Duration
	for i, slot := range s.Slots {
		if slot.Pct == 0 {
			return fmt.Errorf("%w: slot %d has zero percentage", ErrInvalidSchedule, i)
		}
		if slot.Offset < prev {
			return fmt.Errorf("%w: slot %d offset %s precedes %s", ErrInvalidSchedule, i, slot.Offset, prev)
		}
		prev = slot.Offset
		total += uint64(slot.Pct)
	}
	if total != amount.Pct100 {
		return fmt.Errorf("%w: slot percentages sum to %d, want %d", ErrInvalidSchedule, total, amount.Pct100)
	}
	return nil
}

// Unlocked returns the number of slots unlocked at now.
func (s Interval) Unlocked(now time.Time) int {
	n := 0
	for _, slot := range s.Slots {
		if now.Before(s.UnlockAt.Add(slot.Offset)) {
			break
		}
		n++
	}
	return n
}

func (s Interval) Quote(p Position, now time.Time) (Quote, error) {
	k := s.Unlocked(now)
	var vested amount.Amount
	if k == len(s.Slots) {
		vested = p.Entitlement
	} else {
		var pct uint64
		for _, slot := range s.Slots[:k] {
			pct += uint64(slot.Pct)
		}
		var err error
		if vested, err = p.Entitlement.Percent(pct); err != nil {
			return Quote{}, err
		}
	}
	q, err := quote(p, vested)
	if err != nil {
		return Quote{}, err
	}
	q.StartIndex = p.NextSlot
	if k > p.NextSlot {
		q.NewSlots = k - p.NextSlot
	}
	return q, nil
}

// Linear releases the entitlement uniformly over [Start, End).
type Linear struct {
	Start time.Time
	End   time.Time
}

func (Linear) Kind() Kind { return KindLinear }

func (s Linear) Validate() error {
	if !s.Start.Before(s.End) {
		return fmt.Errorf("%w: linear end must follow start", ErrInvalidSchedule)
	}
	return nil
}

func (s Linear) Quote(p Position, now time.Time) (Quote, error) {
	var vested amount.Amount
	switch {
	case now.Before(s.Start):
		vested = amount.Zero
	case !now.Before(s.End):
		vested = p.Entitlement
	default:
		elapsed := amount.New(uint64(now.Sub(s.Start)))
		length := amount.New(uint64(s.End.Sub(s.Start)))
		var err error
		if vested, err = amount.MulDiv(p.Entitlement, elapsed, length); err != nil {
			return Quote{}, err
		}
	}
	return quote(p, vested)
}
