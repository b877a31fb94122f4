package testutil

import "sync"

// ManualClock is a thread-safe millisecond wall clock for tests.
//
// Each call to Now returns the current time and then advances it by the
// configured step, so consecutive stamps are distinct when step > 0 and
// identical when step is 0. Advance and Set move time explicitly.
//
// Implements workflow.Clock.
type ManualClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewManualClock creates a clock starting at start (Unix milliseconds) that
// advances by step after every Now call.
func NewManualClock(start, step int64) *ManualClock {
	return &ManualClock{now: start, step: step}
}

// Now returns the current time and advances by step.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now += c.step
	return t
}

// Current returns the current time without advancing.
func (c *ManualClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d milliseconds.
func (c *ManualClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to t.
func (c *ManualClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
