package engine

import (
	"sync/atomic"
	"time"
)

// Clock stamps every action record, accepted or rejected, with the next
// seq. Ordering uses seq, never wall time, so a replayed log orders exactly
// as it was written. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock for an empty log.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose next seq is start+1, for a log that
// already holds start actions.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// reset moves the clock so the next call to Next returns seq.
func (c *Clock) reset(seq int64) {
	c.seq.Store(seq - 1)
}

// WallClock supplies the time campaign phases are evaluated at.
type WallClock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
