// Package watch provides a single-value channel: receivers observe the
// latest value and a change signal, not every intermediate value. It suits
// configuration and state propagation, where only the newest value matters.
package watch

import (
	"errors"
	"sync"

	"github.com/b97tsk/aio"
)

// ErrClosed is observed by Changed once the sender is closed and the last
// value has been seen.
var ErrClosed = errors.New("watch: sender closed")

// Channel returns a connected sender/receiver pair holding initial.
func Channel[T any](initial T) (*Sender[T], *Receiver[T]) {
	st := &state[T]{value: initial, version: 1}
	return &Sender[T]{s: st}, &Receiver[T]{s: st, seen: 1}
}

type state[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	closed  bool
	waiters []aio.Waker
}

func (st *state[T]) wakeAll(waiters []aio.Waker) {
	for _, w := range waiters {
		w.Wake()
	}
}

// A Sender publishes values. All methods are safe for concurrent use.
type Sender[T any] struct {
	s *state[T]
}

// Send replaces the current value and marks it changed. Values sent in
// quick succession coalesce: receivers see only the latest.
func (s *Sender[T]) Send(v T) {
	st := s.s
	st.mu.Lock()
	st.value = v
	st.version++
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()
	st.wakeAll(waiters)
}

// Modify updates the value in place under the channel lock and marks it
// changed.
func (s *Sender[T]) Modify(fn func(*T)) {
	st := s.s
	st.mu.Lock()
	fn(&st.value)
	st.version++
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()
	st.wakeAll(waiters)
}

// Subscribe returns a new receiver. It has not seen the current value, so
// its first Changed completes immediately.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	return &Receiver[T]{s: s.s}
}

// Close marks the channel closed; pending and future Changed calls observe
// [ErrClosed] after consuming any unseen value.
func (s *Sender[T]) Close() {
	st := s.s
	st.mu.Lock()
	st.closed = true
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()
	st.wakeAll(waiters)
}

// A Receiver tracks which version of the value it has seen. One receiver
// must not be used from two tasks at once; Subscribe is cheap.
type Receiver[T any] struct {
	s    *state[T]
	seen uint64
}

// Borrow returns the current value without marking it seen.
func (r *Receiver[T]) Borrow() T {
	st := r.s
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.value
}

// BorrowAndUpdate returns the current value and marks it seen, so the next
// Changed waits for a newer one.
func (r *Receiver[T]) BorrowAndUpdate() T {
	st := r.s
	st.mu.Lock()
	defer st.mu.Unlock()
	r.seen = st.version
	return st.value
}

// Changed returns a future that completes with nil once a value newer than
// the last one seen is available, or with [ErrClosed] when the sender is
// gone and nothing new will come. Completion marks the value seen; read it
// with Borrow.
func (r *Receiver[T]) Changed() aio.Future[error] {
	return aio.FutureFunc[error](func(cx *aio.Context) aio.Poll[error] {
		st := r.s
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.version != r.seen {
			r.seen = st.version
			return aio.Ready[error](nil)
		}
		if st.closed {
			return aio.Ready(ErrClosed)
		}
		st.waiters = append(st.waiters, cx.Waker())
		return aio.Pending[error]()
	})
}
