// Package oneshot provides a channel carrying exactly one value from one
// sender to one receiver, following the poll contract.
package oneshot

import (
	"errors"
	"sync"

	"github.com/b97tsk/aio"
)

var (
	// ErrAlreadySent is reported by a second Send on the same channel.
	ErrAlreadySent = errors.New("oneshot: value already sent")

	// ErrReceiverDropped is reported by Send after the receiver was closed
	// or its task aborted.
	ErrReceiverDropped = errors.New("oneshot: receiver dropped")

	// ErrSenderDropped is observed by the receiver when the sender closes
	// without sending.
	ErrSenderDropped = errors.New("oneshot: sender dropped")
)

// Channel returns a connected sender/receiver pair.
func Channel[T any]() (*Sender[T], *Receiver[T]) {
	st := &state[T]{}
	return &Sender[T]{s: st}, &Receiver[T]{s: st}
}

type state[T any] struct {
	mu           sync.Mutex
	value        T
	sent         bool
	senderGone   bool
	receiverGone bool
	waker        aio.Waker
}

// A Sender delivers at most one value; Send never blocks.
type Sender[T any] struct {
	s *state[T]
}

// Send delivers v and wakes the receiver. It fails with [ErrAlreadySent]
// on a second call and with [ErrReceiverDropped] when nobody will receive.
func (s *Sender[T]) Send(v T) error {
	st := s.s
	st.mu.Lock()
	if st.sent || st.senderGone {
		st.mu.Unlock()
		return ErrAlreadySent
	}
	if st.receiverGone {
		st.mu.Unlock()
		return ErrReceiverDropped
	}
	st.value = v
	st.sent = true
	wk := st.waker
	st.waker = nil
	st.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
	return nil
}

// Close drops the sender without sending; the receiver observes
// [ErrSenderDropped]. Close after Send has no effect.
func (s *Sender[T]) Close() {
	st := s.s
	st.mu.Lock()
	if st.sent || st.senderGone {
		st.mu.Unlock()
		return
	}
	st.senderGone = true
	wk := st.waker
	st.waker = nil
	st.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
}

// A Receiver is a [aio.Future] completing with the sent value, or with
// [ErrSenderDropped] if the sender closes first.
type Receiver[T any] struct {
	s *state[T]
}

func (r *Receiver[T]) Poll(cx *aio.Context) aio.Poll[aio.TaskResult[T]] {
	st := r.s
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case st.sent:
		return aio.Ready(aio.TaskResult[T]{Value: st.value})
	case st.senderGone:
		return aio.Ready(aio.TaskResult[T]{Err: ErrSenderDropped})
	case st.receiverGone:
		return aio.Ready(aio.TaskResult[T]{Err: ErrSenderDropped})
	}
	st.waker = cx.Waker()
	return aio.Pending[aio.TaskResult[T]]()
}

// TryRecv takes the value without waiting, reporting whether it was there.
func (r *Receiver[T]) TryRecv() (T, bool) {
	st := r.s
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sent {
		return st.value, true
	}
	var zero T
	return zero, false
}

// Close drops the receiver; a later Send fails with [ErrReceiverDropped].
func (r *Receiver[T]) Close() {
	st := r.s
	st.mu.Lock()
	st.receiverGone = true
	st.waker = nil
	st.mu.Unlock()
}

// Cleanup drops the receiver when its task is aborted, so an abandoned
// send fails fast instead of landing in a void.
func (r *Receiver[T]) Cleanup() {
	r.Close()
}
