package aio

import "time"

// An Interval yields ticks at a fixed period. Missed ticks are skipped, not
// burst: after a long poll gap, the next tick lands on the next period
// boundary in the future, keeping the original phase.
type Interval struct {
	period time.Duration
	next   time.Time
	entry  *timerEntry
	armed  bool
}

// NewInterval returns an interval whose first tick is due one period after
// the first poll.
func NewInterval(period time.Duration) *Interval {
	if period <= 0 {
		panic("aio: interval period must be positive")
	}
	return &Interval{period: period}
}

// PollTick completes with the tick's scheduled time whenever a period
// boundary has passed since the previous tick.
func (iv *Interval) PollTick(cx *Context) Poll[time.Time] {
	rt := cx.Runtime()
	if rt == nil || rt.wheel == nil {
		panic(ErrTimerDisabled)
	}
	now := rt.clock.Now()
	if !iv.armed {
		iv.next = now.Add(iv.period)
		iv.armed = true
	}
	for {
		if !now.Before(iv.next) {
			tick := iv.next
			iv.next = tick.Add(iv.period)
			if !now.Before(iv.next) {
				// Skip boundaries that already passed, staying on the
				// original phase grid.
				n := now.Sub(tick) / iv.period
				iv.next = tick.Add((n + 1) * iv.period)
			}
			iv.entry = nil
			return Ready(tick)
		}
		if iv.entry != nil && iv.entry.state.Load() == timerPending {
			return Pending[time.Time]()
		}
		iv.entry = rt.wheel.insert(iv.next, cx.Waker())
		if iv.entry == nil {
			// Raced due; loop around and take the ready branch.
			now = rt.clock.Now()
			continue
		}
		rt.timerScheduled()
		return Pending[time.Time]()
	}
}

// Reset discards the current phase; the next tick becomes due a full period
// after the next poll.
func (iv *Interval) Reset() {
	iv.armed = false
	iv.Cleanup()
}

// Cleanup cancels the armed timer, if any.
func (iv *Interval) Cleanup() {
	if iv.entry != nil {
		iv.entry.cancel()
		iv.entry = nil
	}
}
