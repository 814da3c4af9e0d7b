package aio

// blockWaker resumes the goroutine parked in BlockOn. The channel holds one
// token, so any number of wakes before the next poll cost one resume.
type blockWaker struct {
	ch chan struct{}
}

func (w *blockWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// BlockOn drives f to completion on the calling goroutine, parking between
// polls, and returns the completed value. It is the bridge from synchronous
// code into the engine; calling it from inside a task parks that task's
// worker, so don't. A panic out of f propagates to the caller.
func BlockOn[T any](rt *Runtime, f Future[T]) T {
	w := &blockWaker{ch: make(chan struct{}, 1)}
	for {
		cx := NewContext(rt, w)
		if p := f.Poll(cx); p.Ready {
			return p.Value
		}
		<-w.ch
	}
}
