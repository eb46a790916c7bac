package vesting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
)

var unlock = time.Unix(1_700_000_000, 0).UTC()

func threeSlots() Interval {
	return Interval{
		UnlockAt: unlock,
		Slots: []Slot{
			{Pct: 340_000, Offset: 0},
			{Pct: 330_000, Offset: 300 * time.Second},
			{Pct: 330_000, Offset: 600 * time.Second},
		},
	}
}

func TestInterval_ClaimsEachSlot(t *testing.T) {
	s := threeSlots()
	require.NoError(t, s.Validate())
	one := amount.MustParse("1", 18)
	pos := Position{Entitlement: one}

	q, err := s.Quote(pos, unlock.Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, q.Claimable.IsZero())
	_, _, err = Claim(s, pos, unlock.Add(-time.Second))
	assert.ErrorIs(t, err, ErrNothingToClaim)

	pos, q, err = Claim(s, pos, unlock)
	require.NoError(t, err)
	assert.Equal(t, "0.34", q.Claimable.Format(18))
	assert.Equal(t, 1, q.NewSlots)
	assert.Equal(t, 0, q.StartIndex)

	_, _, err = Claim(s, pos, unlock.Add(100*time.Second))
	assert.ErrorIs(t, err, ErrNothingToClaim)

	pos, q, err = Claim(s, pos, unlock.Add(300*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0.33", q.Claimable.Format(18))
	assert.Equal(t, 1, q.StartIndex)

	pos, q, err = Claim(s, pos, unlock.Add(600*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0.33", q.Claimable.Format(18))
	assert.Equal(t, 3, pos.NextSlot)
	assert.True(t, pos.Claimed.Eq(one))
}

func TestInterval_SameOffsetUnlocksTogether(t *testing.T) {
	s := threeSlots()
	s.Slots[2].Offset = 300 * time.Second
	pos := Position{Entitlement: amount.MustParse("1", 18)}

	q, err := s.Quote(pos, unlock.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "1", q.Claimable.Format(18))
	assert.Equal(t, 3, q.NewSlots)
}

func TestInterval_ZeroDust(t *testing.T) {
	s := Interval{
		UnlockAt: unlock,
		Slots: []Slot{
			{Pct: 333_333, Offset: 0},
			{Pct: 333_333, Offset: time.Minute},
			{Pct: 333_334, Offset: 2 * time.Minute},
		},
	}
	pos := Position{Entitlement: amount.New(100)}
	total := amount.Zero
	for _, off := range []time.Duration{0, time.Minute, 2 * time.Minute} {
		var q Quote
		var err error
		pos, q, err = Claim(s, pos, unlock.Add(off))
		require.NoError(t, err)
		total, err = total.Add(q.Claimable)
		require.NoError(t, err)
	}
	assert.Equal(t, amount.New(100), total)
}

func TestInterval_Validate(t *testing.T) {
	tests := []struct {
		name  string
		slots []Slot
	}{
		{"empty", nil},
		{"short", []Slot{{Pct: 500_000}}},
		{"zero pct", []Slot{{Pct: 0}, {Pct: 1_000_000}}},
		{"backwards", []Slot{{Pct: 500_000, Offset: time.Minute}, {Pct: 500_000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Interval{UnlockAt: unlock, Slots: tt.slots}.Validate()
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestLinear_MonotoneAndExact(t *testing.T) {
	s := Linear{Start: unlock, End: unlock.Add(900 * time.Second)}
	require.NoError(t, s.Validate())
	ent := amount.New(7)
	pos := Position{Entitlement: ent}

	prev := amount.Zero
	for sec := -10; sec <= 1000; sec += 7 {
		q, err := s.Quote(pos, unlock.Add(time.Duration(sec)*time.Second))
		require.NoError(t, err)
		assert.False(t, q.Vested.Lt(prev), "vested decreased at %ds", sec)
		assert.False(t, q.Vested.Gt(ent))
		prev = q.Vested
	}

	q, err := s.Quote(pos, s.End)
	require.NoError(t, err)
	assert.Equal(t, ent, q.Vested)
}

func TestLinear_RepeatedPartialClaims(t *testing.T) {
	s := Linear{Start: unlock, End: unlock.Add(900 * time.Second)}
	ent := amount.MustParse("1", 18)
	pos := Position{Entitlement: ent}

	pos, q, err := Claim(s, pos, unlock.Add(300*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", q.Claimable.Format(18))

	pos, _, err = Claim(s, pos, unlock.Add(600*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0.666666666666666666", pos.Claimed.Format(18))

	pos, q, err = Claim(s, pos, unlock.Add(900*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333334", q.Claimable.Format(18))
	assert.True(t, pos.Claimed.Eq(ent))

	_, _, err = Claim(s, pos, unlock.Add(2000*time.Second))
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaim_ZeroEntitlement(t *testing.T) {
	_, _, err := Claim(threeSlots(), Position{}, unlock)
	assert.ErrorIs(t, err, ErrNothingEntitled)
}

func TestConfig_Resolve(t *testing.T) {
	anchor := unlock.Add(time.Hour)

	s, err := Config{Kind: KindLinear, Duration: time.Minute}.Resolve(anchor)
	require.NoError(t, err)
	assert.Equal(t, Linear{Start: anchor, End: anchor.Add(time.Minute)}, s)

	s, err = Config{Kind: KindInterval, UnlockAt: unlock, Slots: []Slot{{Pct: 1_000_000}}}.Resolve(anchor)
	require.NoError(t, err)
	assert.Equal(t, unlock, s.(Interval).UnlockAt)

	_, err = Immediate().Resolve(anchor)
	require.NoError(t, err)

	_, err = Config{Kind: "weird"}.Resolve(anchor)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	_, err = Config{Kind: KindLinear}.Resolve(anchor)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
