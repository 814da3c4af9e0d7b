package aio

// Poll is the outcome of one attempt to advance a [Future]: either Ready,
// carrying the completed value, or Pending.
//
// A Pending result is a promise: the callee has stored the context's [Waker]
// somewhere that will call Wake when progress becomes possible. Returning
// Pending without arranging a wakeup leaves the task suspended forever.
type Poll[T any] struct {
	Value T
	Ready bool
}

// Ready returns a completed [Poll] carrying v.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{Value: v, Ready: true}
}

// Pending returns a [Poll] that reports no progress yet.
func Pending[T any]() Poll[T] {
	return Poll[T]{}
}

// A Future is a suspendable computation, similar to a function but
// cooperative: each call to Poll either completes it or suspends it until
// the registered [Waker] fires.
//
// Poll is always called with exclusive access. Once Poll returns Ready,
// the future must not be polled again; doing so is a caller error.
//
// A Future that registers external interests (an I/O registration, a timer
// entry, a channel waiter) should also implement [Cleanup] so that those
// interests can be released synchronously when the future is dropped before
// completion.
type Future[T any] interface {
	Poll(cx *Context) Poll[T]
}

// A FutureFunc is a func that implements the [Future] interface.
type FutureFunc[T any] func(cx *Context) Poll[T]

// Poll implements the [Future] interface.
func (f FutureFunc[T]) Poll(cx *Context) Poll[T] { return f(cx) }

// Cleanup represents any type that carries a Cleanup method.
// The engine invokes Cleanup exactly once on a task's future when the task
// completes or is aborted, releasing any outstanding registrations.
type Cleanup interface {
	Cleanup()
}

// A Waker is a handle used to request that a suspended task be polled again.
// Waker values are shareable across goroutines and may be invoked any number
// of times; for task-backed wakers, waking N times before the next poll
// results in exactly one re-enqueue, and waking a completed task is a no-op.
type Waker interface {
	Wake()
}

// Context carries everything a [Future] may consult while being polled:
// the waker to register before returning Pending, and an explicit handle to
// the [Runtime] whose scheduler, I/O driver and timer wheel serve this task.
// There is no ambient "current runtime"; all coupling is through Context.
type Context struct {
	rt    *Runtime
	waker Waker
	yield bool
}

// NewContext returns a Context for polling futures outside the scheduler,
// for example from tests or custom executors. rt may be nil when the polled
// future touches no runtime service.
func NewContext(rt *Runtime, waker Waker) *Context {
	return &Context{rt: rt, waker: waker}
}

// Runtime returns the runtime this poll is running under.
func (cx *Context) Runtime() *Runtime { return cx.rt }

// Waker returns the waker identifying the task being polled.
func (cx *Context) Waker() Waker { return cx.waker }

// markYield records that the pending result is a cooperative yield, so the
// scheduler requeues the task behind other runnable tasks instead of
// favoring it.
func (cx *Context) markYield() { cx.yield = true }

// YieldNow returns a [Future] that suspends once and resumes after other
// runnable tasks on the same worker have had a chance to run. It is the
// cooperative analogue of a preemption point: a long poll loop should yield
// periodically, because the engine never preempts a running task.
func YieldNow() Future[struct{}] {
	first := true
	return FutureFunc[struct{}](func(cx *Context) Poll[struct{}] {
		if !first {
			return Ready(struct{}{})
		}
		first = false
		cx.markYield()
		cx.Waker().Wake()
		return Pending[struct{}]()
	})
}
