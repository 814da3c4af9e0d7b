package aio

import (
	"sync"
	"sync/atomic"
)

// Task cell lifecycle states. The word moves strictly along:
//
//	idle ──wake──▶ scheduled ──pop──▶ running ──ready──▶ done
//	 ▲                                  │  │
//	 └──────────pending─────────────────┘  └─wake─▶ notified ─▶ scheduled
//
// The state machine is what makes wakes idempotent (idle→scheduled happens
// at most once per suspension) and what enforces at-most-one-concurrent-poll
// (only the worker that wins the scheduled→running transition may touch the
// future).
const (
	stateIdle uint32 = iota
	stateScheduled
	stateRunning
	stateNotified
	stateDone
)

// A task owns one suspendable computation and its completion state.
// It is created on submission, mutated only by the worker currently polling
// it or by the abort path, and reclaimed by the garbage collector once the
// handle and the scheduler both let go of it.
type task struct {
	state atomic.Uint32
	rt    *Runtime

	// future is written by init and by finish (to nil); read only while
	// holding the running state.
	future Future[any]

	aborted atomic.Bool

	// workerIdx is the worker that last polled this task, or -1.
	// Wakes prefer that worker's queue for locality.
	workerIdx atomic.Int32

	mu        sync.Mutex
	joinWaker Waker

	result any
	err    error
	done   chan struct{}
}

func newTask(rt *Runtime, f Future[any]) *task {
	t := &task{
		rt:     rt,
		future: f,
		done:   make(chan struct{}),
	}
	t.state.Store(stateScheduled)
	t.workerIdx.Store(-1)
	return t
}

// Wake requests that the task be polled again. Multiple wakes before the
// next poll coalesce into a single re-enqueue; waking a completed task is
// a no-op.
func (t *task) Wake() {
	for {
		switch t.state.Load() {
		case stateIdle:
			if t.state.CompareAndSwap(stateIdle, stateScheduled) {
				t.rt.sched.schedule(t)
				return
			}
		case stateRunning:
			if t.state.CompareAndSwap(stateRunning, stateNotified) {
				return
			}
		default: // scheduled, notified, done
			return
		}
	}
}

// poll drives the task once on worker w (nil when driven during shutdown).
// It reports whether the task must be requeued by the caller because it was
// woken while running, and whether that wake was a cooperative yield.
func (t *task) poll(w *worker) (requeue, yield bool) {
	if !t.state.CompareAndSwap(stateScheduled, stateRunning) {
		// Completed by abort or shutdown while queued.
		return false, false
	}
	if t.aborted.Load() {
		t.finish(nil, ErrTaskAborted)
		return false, false
	}
	if w != nil {
		t.workerIdx.Store(int32(w.idx))
	}

	cx := &Context{rt: t.rt, waker: t}
	var p Poll[any]
	pe := tryPoll(func() { p = t.future.Poll(cx) })

	switch {
	case pe != nil:
		t.finish(nil, pe)
		return false, false
	case p.Ready:
		t.finish(p.Value, nil)
		return false, false
	}

	if t.aborted.Load() {
		t.finish(nil, ErrTaskAborted)
		return false, false
	}

	if t.state.CompareAndSwap(stateRunning, stateIdle) {
		return false, false
	}
	// Woken during the poll: notified → scheduled, caller requeues.
	t.state.Store(stateScheduled)
	return true, cx.yield
}

// abort requests cancellation. If the task is suspended (idle), the
// cancellation is synchronous: the future's Cleanup runs before abort
// returns, so no waker can fire into released state afterwards. If the task
// is queued or mid-poll, the worker driving it observes the flag and
// finishes the task there.
func (t *task) abort() {
	if !t.aborted.CompareAndSwap(false, true) {
		return
	}
	for {
		switch t.state.Load() {
		case stateIdle:
			// Claim the cell like a worker would, then finish in place.
			if t.state.CompareAndSwap(stateIdle, stateRunning) {
				t.finish(nil, ErrTaskAborted)
				return
			}
		default:
			return
		}
	}
}

// finish records the terminal result, releases the future's registrations,
// and wakes anything joined on the task. Completion is terminal: the future
// is never polled again.
func (t *task) finish(v any, err error) {
	if c, ok := t.future.(Cleanup); ok {
		// A panicking Cleanup must not take down the worker.
		_ = tryPoll(c.Cleanup)
	}
	t.future = nil
	t.result = v
	t.err = err
	t.state.Store(stateDone)
	close(t.done)

	t.mu.Lock()
	w := t.joinWaker
	t.joinWaker = nil
	t.mu.Unlock()
	if w != nil {
		w.Wake()
	}

	if pe, ok := err.(*PanicError); ok {
		t.rt.log.Error("task panicked", "panic", pe.Value)
	}
}

func (t *task) completed() bool {
	return t.state.Load() == stateDone
}

// setJoinWaker registers w to be woken on completion. It reports whether
// the task already completed, in which case polling again is safe
// immediately.
func (t *task) setJoinWaker(w Waker) bool {
	t.mu.Lock()
	if t.completed() {
		t.mu.Unlock()
		return true
	}
	t.joinWaker = w
	t.mu.Unlock()
	return t.completed()
}
