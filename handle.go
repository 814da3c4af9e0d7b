package aio

// TaskResult pairs a completed value with a terminal error. It is the
// outcome type of [Handle] joins and of [Timeout].
type TaskResult[T any] struct {
	Value T
	Err   error
}

// A Handle is the submitter's reference to a spawned task. It can be joined
// for the result, aborted, or simply dropped. A dropped handle detaches the
// task, which still runs to completion.
type Handle[T any] struct {
	cell *task
}

// Join blocks the calling goroutine until the task completes and returns
// its result. The error is non-nil if the task panicked (*PanicError), was
// aborted (ErrTaskAborted), or was discarded at shutdown (ErrShutdown).
func (h *Handle[T]) Join() (T, error) {
	<-h.cell.done
	return h.take()
}

// Poll implements [Future]; it completes when the task completes, making
// handles composable with [Timeout] and with other futures.
func (h *Handle[T]) Poll(cx *Context) Poll[TaskResult[T]] {
	if !h.cell.completed() && !h.cell.setJoinWaker(cx.Waker()) {
		return Pending[TaskResult[T]]()
	}
	v, err := h.take()
	return Ready(TaskResult[T]{Value: v, Err: err})
}

// Abort cancels the task. If the task is suspended, its pending I/O, timer
// and channel registrations are released before Abort returns; if it is
// mid-poll, the worker driving it finishes the cancellation at the end of
// that poll. Aborting a completed task has no effect.
func (h *Handle[T]) Abort() {
	h.cell.abort()
}

// Done reports whether the task has reached a terminal state.
func (h *Handle[T]) Done() bool {
	return h.cell.completed()
}

func (h *Handle[T]) take() (T, error) {
	var zero T
	if h.cell.err != nil {
		return zero, h.cell.err
	}
	if v, ok := h.cell.result.(T); ok {
		return v, nil
	}
	return zero, nil
}
