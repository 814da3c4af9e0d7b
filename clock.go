package aio

import (
	"sync"
	"time"
)

// A Clock supplies the time observed by the timer wheel and by timer
// futures. The runtime reads its clock at construction only; tests install
// a [ManualClock] to make time a controlled input instead of a race.
type Clock interface {
	Now() time.Time
}

// systemClock is the default, monotonic wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// A ManualClock only moves when told to. Advancing it fires due timers on
// the runtime it is installed into before Advance returns, which makes
// timed tests deterministic.
type ManualClock struct {
	mu        sync.Mutex
	now       time.Time
	onAdvance func()
}

// NewManualClock returns a manual clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and delivers any timers that became
// due, then wakes the runtime so the resumed tasks get polled.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("aio: ManualClock.Advance with negative duration")
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	hook := c.onAdvance
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// bind installs the runtime's timer-delivery hook. Installing one clock
// into two runtimes is not supported.
func (c *ManualClock) bind(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onAdvance != nil && hook != nil {
		panic("aio: ManualClock already bound to a runtime")
	}
	c.onAdvance = hook
}
