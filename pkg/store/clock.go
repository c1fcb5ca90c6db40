package store

import (
	"sync"
	"time"
)

// Clock is a shiftable clock used to stamp created and updated times, so tests
// and the admin API can move time forward without sleeping.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock returns a clock that reads real time.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the shifted current time in UTC.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UTC().Add(c.offset)
}

// Advance shifts the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Offset returns the accumulated shift.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Reset removes any shift.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}
