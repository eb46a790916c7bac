package testutil

import (
	"sync"
	"time"
)

// ManualClock is a wall clock that only moves when told to.
//
// Scenarios and engine tests use it so campaign phases are evaluated at
// exact, repeatable instants.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
}

// NewManualClock creates a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{start: start, now: start}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed; campaigns only
// ever see the reading, never its history.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new reading.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// At moves the clock to start+offset.
func (c *ManualClock) At(offset time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start.Add(offset)
	return c.now
}

// Reset returns the clock to its start.
func (c *ManualClock) Reset() {
	c.At(0)
}
