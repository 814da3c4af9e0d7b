package aio

import "time"

// Sleep returns a future that completes d after its first poll. Zero and
// negative durations complete on the first poll. The future may be woken
// early by wheel cascading; it re-checks the clock and re-arms, so it never
// completes before the deadline.
func Sleep(d time.Duration) Future[struct{}] {
	return &sleepFuture{dur: d}
}

// SleepUntil returns a future that completes once the runtime clock reaches
// deadline.
func SleepUntil(deadline time.Time) Future[struct{}] {
	return &sleepFuture{deadline: deadline, haveDeadline: true}
}

type sleepFuture struct {
	dur          time.Duration
	deadline     time.Time
	haveDeadline bool
	entry        *timerEntry
}

func (f *sleepFuture) Poll(cx *Context) Poll[struct{}] {
	rt := cx.Runtime()
	if rt == nil || rt.wheel == nil {
		panic(ErrTimerDisabled)
	}
	now := rt.clock.Now()
	if !f.haveDeadline {
		f.deadline = now.Add(f.dur)
		f.haveDeadline = true
	}
	if !now.Before(f.deadline) {
		f.entry = nil
		return Ready(struct{}{})
	}
	if f.entry != nil && f.entry.state.Load() == timerPending {
		// Spurious poll; the armed entry still covers us.
		return Pending[struct{}]()
	}
	f.entry = rt.wheel.insert(f.deadline, cx.Waker())
	if f.entry == nil {
		// The deadline passed between the check and the insert.
		return Ready(struct{}{})
	}
	rt.timerScheduled()
	return Pending[struct{}]()
}

func (f *sleepFuture) Cleanup() {
	if f.entry != nil {
		f.entry.cancel()
		f.entry = nil
	}
}
