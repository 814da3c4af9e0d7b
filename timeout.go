package aio

import "time"

// Timeout wraps f with a deadline. The result carries f's value, or
// Err == [ErrTimeout] when d elapses first. Whichever side loses the race
// has its Cleanup run, so a timed-out future releases its registrations
// immediately.
func Timeout[T any](d time.Duration, f Future[T]) Future[TaskResult[T]] {
	return &timeoutFuture[T]{inner: f, sleep: &sleepFuture{dur: d}}
}

// TimeoutAt is [Timeout] with an absolute deadline.
func TimeoutAt[T any](deadline time.Time, f Future[T]) Future[TaskResult[T]] {
	return &timeoutFuture[T]{
		inner: f,
		sleep: &sleepFuture{deadline: deadline, haveDeadline: true},
	}
}

type timeoutFuture[T any] struct {
	inner Future[T]
	sleep *sleepFuture
	done  bool
}

func (t *timeoutFuture[T]) Poll(cx *Context) Poll[TaskResult[T]] {
	if p := t.inner.Poll(cx); p.Ready {
		t.done = true
		t.sleep.Cleanup()
		return Ready(TaskResult[T]{Value: p.Value})
	}
	if p := t.sleep.Poll(cx); p.Ready {
		t.done = true
		if c, ok := t.inner.(Cleanup); ok {
			c.Cleanup()
		}
		return Ready(TaskResult[T]{Err: ErrTimeout})
	}
	return Pending[TaskResult[T]]()
}

func (t *timeoutFuture[T]) Cleanup() {
	if t.done {
		return
	}
	t.sleep.Cleanup()
	if c, ok := t.inner.(Cleanup); ok {
		c.Cleanup()
	}
}
