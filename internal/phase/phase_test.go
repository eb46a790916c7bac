package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0).UTC()

func testSchedule() Schedule {
	return Schedule{
		SubStart: epoch.Add(100 * time.Second),
		SubEnd:   epoch.Add(200 * time.Second),
		IdoStart: epoch.Add(300 * time.Second),
		IdoEnd:   epoch.Add(1000 * time.Second),
	}
}

func TestAt(t *testing.T) {
	s := testSchedule()
	wl := 60 * time.Second

	tests := []struct {
		offset time.Duration
		want   Phase
	}{
		{0, Setup},
		{99 * time.Second, Setup},
		{100 * time.Second, Subscription},
		{199 * time.Second, Subscription},
		{200 * time.Second, Tally},
		{299 * time.Second, Tally},
		{300 * time.Second, IdoWhitelisted},
		{359 * time.Second, IdoWhitelisted},
		{360 * time.Second, IdoPublic},
		{362 * time.Second, IdoPublic},
		{999 * time.Second, IdoPublic},
		{1000 * time.Second, IdoEnded},
		{5000 * time.Second, IdoEnded},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, At(s, wl, false, epoch.Add(tt.offset)))
		})
	}
}

func TestAt_CancelledOverrides(t *testing.T) {
	s := testSchedule()
	for _, off := range []time.Duration{0, 150 * time.Second, 400 * time.Second, 2000 * time.Second} {
		assert.Equal(t, Cancelled, At(s, 0, true, epoch.Add(off)))
	}
}

func TestAt_NoWhitelistGoesStraightToPublic(t *testing.T) {
	s := testSchedule()
	assert.Equal(t, IdoPublic, At(s, 0, false, s.IdoStart))
}

func TestValidate(t *testing.T) {
	s := testSchedule()
	require.NoError(t, s.Validate(60*time.Second))

	bad := s
	bad.SubEnd = bad.SubStart
	assert.ErrorIs(t, bad.Validate(0), ErrInvalidSchedule)

	bad = s
	bad.IdoStart = bad.SubEnd
	assert.ErrorIs(t, bad.Validate(0), ErrInvalidSchedule)

	bad = s
	bad.IdoEnd = bad.IdoStart
	assert.ErrorIs(t, bad.Validate(0), ErrInvalidSchedule)

	assert.ErrorIs(t, s.Validate(time.Hour), ErrInvalidSchedule)
	assert.ErrorIs(t, Schedule{}.Validate(0), ErrInvalidSchedule)
}

func TestElapsed(t *testing.T) {
	s := testSchedule()
	assert.Equal(t, time.Duration(0), Elapsed(s, s.SubStart))
	assert.Equal(t, 45*time.Second, Elapsed(s, s.IdoStart.Add(45*time.Second)))
}

func TestParseRoundTrip(t *testing.T) {
	for p := Setup; p <= Cancelled; p++ {
		got, err := Parse(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := Parse("bogus")
	assert.Error(t, err)
}
