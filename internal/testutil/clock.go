package testutil

import (
	"sync"
	"time"
)

// FixedClock is a deterministic wall clock for tests.
//
// Each call to Now returns the start time advanced by step times the number of
// previous calls, so persisted timestamps are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int
}

// NewFixedClock creates a clock starting at start. A zero step freezes time.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{start: start.UTC(), step: step}
}

// Now returns the next timestamp.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Reset rewinds the clock to its start time.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
