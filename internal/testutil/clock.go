package testutil

import (
	"sync"
	"time"
)

// WallClock is a settable wall clock for tests.
//
// The boundary adapter measures execution time against the clock it is
// given; driving it from a WallClock makes those measurements exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type WallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewWallClock creates a clock reading t.
func NewWallClock(t time.Time) *WallClock {
	return &WallClock{now: t}
}

// Now returns the current reading. Suitable as a func() time.Time.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d (backwards if d is negative).
func (c *WallClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *WallClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
