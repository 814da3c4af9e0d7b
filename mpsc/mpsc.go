// Package mpsc provides a bounded multi-producer, single-consumer channel
// whose operations suspend tasks, not goroutines.
//
// Capacity is the backpressure contract: once the buffer is full, Send
// futures stay pending until the consumer makes room, and blocked senders
// are granted slots strictly in arrival order.
package mpsc

import (
	"errors"
	"sync"

	"github.com/b97tsk/aio"
)

var (
	// ErrClosed is reported by sends on a channel whose receiver closed it.
	ErrClosed = errors.New("mpsc: channel closed")

	// ErrFull is reported by TrySend when the buffer has no room.
	ErrFull = errors.New("mpsc: channel full")
)

// Recv is one receive outcome. OK is false when the channel is closed and
// drained; Value is then the zero value.
type Recv[T any] struct {
	Value T
	OK    bool
}

// Channel returns a connected sender/receiver pair buffering up to capacity
// values. Capacity must be at least 1.
func Channel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		panic("mpsc: capacity must be at least 1")
	}
	st := &state[T]{buf: make([]T, capacity), senders: 1}
	return &Sender[T]{s: st}, &Receiver[T]{s: st}
}

type state[T any] struct {
	mu   sync.Mutex
	buf  []T // ring
	head int
	n    int

	senders int // live sender clones
	closed  bool

	recvWaker aio.Waker
	sendq     []*sendWaiter[T]
}

type sendWaiter[T any] struct {
	value T
	waker aio.Waker
	done  bool
	err   error
}

func (st *state[T]) pushLocked(v T) {
	st.buf[(st.head+st.n)%len(st.buf)] = v
	st.n++
}

// wakeRecvLocked takes the receiver waker for the caller to fire after
// unlocking.
func (st *state[T]) wakeRecvLocked() aio.Waker {
	w := st.recvWaker
	st.recvWaker = nil
	return w
}

// A Sender is one producer handle. Clones share the channel; the channel
// counts as sender-closed once every clone is closed.
type Sender[T any] struct {
	s      *state[T]
	mu     sync.Mutex
	closed bool
}

// Clone returns another producer handle for the same channel.
func (s *Sender[T]) Clone() *Sender[T] {
	st := s.s
	st.mu.Lock()
	st.senders++
	st.mu.Unlock()
	return &Sender[T]{s: st}
}

// TrySend enqueues v without waiting. It fails with [ErrFull] when the
// buffer is full or senders are already queued, and with [ErrClosed] on a
// closed channel or through a closed handle.
func (s *Sender[T]) TrySend(v T) error {
	if s.isClosed() {
		return ErrClosed
	}
	st := s.s
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrClosed
	}
	if st.n == len(st.buf) || len(st.sendq) > 0 {
		st.mu.Unlock()
		return ErrFull
	}
	st.pushLocked(v)
	wk := st.wakeRecvLocked()
	st.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
	return nil
}

// Send returns a future that completes once v is enqueued, with a nil
// error, or with [ErrClosed] if the receiver closes first or this handle
// was closed. Dropping the future before completion gives up the queue
// slot.
func (s *Sender[T]) Send(v T) aio.Future[error] {
	return &sendFuture[T]{sender: s, s: s.s, value: v}
}

func (s *Sender[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close drops this producer handle. Closing the last handle marks the
// channel sender-closed: the receiver drains the buffer and then observes
// OK == false.
func (s *Sender[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	st := s.s
	st.mu.Lock()
	st.senders--
	var wk aio.Waker
	if st.senders == 0 {
		wk = st.wakeRecvLocked()
	}
	st.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
}

type sendFuture[T any] struct {
	sender *Sender[T]
	s      *state[T]
	value  T
	w      *sendWaiter[T]
}

func (f *sendFuture[T]) Poll(cx *aio.Context) aio.Poll[error] {
	if f.w == nil && f.sender.isClosed() {
		return aio.Ready(ErrClosed)
	}
	st := f.s
	st.mu.Lock()
	if f.w != nil {
		if f.w.done {
			err := f.w.err
			f.w = nil
			st.mu.Unlock()
			return aio.Ready(err)
		}
		f.w.waker = cx.Waker()
		st.mu.Unlock()
		return aio.Pending[error]()
	}
	if st.closed {
		st.mu.Unlock()
		return aio.Ready(ErrClosed)
	}
	if st.n < len(st.buf) && len(st.sendq) == 0 {
		st.pushLocked(f.value)
		wk := st.wakeRecvLocked()
		st.mu.Unlock()
		if wk != nil {
			wk.Wake()
		}
		return aio.Ready[error](nil)
	}
	f.w = &sendWaiter[T]{value: f.value, waker: cx.Waker()}
	st.sendq = append(st.sendq, f.w)
	st.mu.Unlock()
	return aio.Pending[error]()
}

// Cleanup gives up the queue slot when the sending task is aborted. A value
// already moved into the buffer stays there.
func (f *sendFuture[T]) Cleanup() {
	st := f.s
	w := f.w
	f.w = nil
	if w == nil {
		return
	}
	st.mu.Lock()
	if !w.done {
		for i, q := range st.sendq {
			if q == w {
				st.sendq = append(st.sendq[:i], st.sendq[i+1:]...)
				break
			}
		}
	}
	st.mu.Unlock()
}

// A Receiver is the single consumer handle. Its methods must not be used
// from more than one task at a time.
type Receiver[T any] struct {
	s *state[T]
}

// PollRecv takes the oldest buffered value. When a value is taken, the
// longest-queued blocked sender is granted the freed slot and woken. After
// the last sender closes, remaining buffered values drain in order and then
// OK == false is reported.
func (r *Receiver[T]) PollRecv(cx *aio.Context) aio.Poll[Recv[T]] {
	st := r.s
	st.mu.Lock()
	if st.n > 0 {
		v := st.buf[st.head]
		var zero T
		st.buf[st.head] = zero
		st.head = (st.head + 1) % len(st.buf)
		st.n--

		var wk aio.Waker
		if len(st.sendq) > 0 {
			w := st.sendq[0]
			st.sendq = st.sendq[1:]
			st.pushLocked(w.value)
			w.done = true
			wk = w.waker
		}
		st.mu.Unlock()
		if wk != nil {
			wk.Wake()
		}
		return aio.Ready(Recv[T]{Value: v, OK: true})
	}
	if st.senders == 0 || st.closed {
		st.mu.Unlock()
		return aio.Ready(Recv[T]{})
	}
	st.recvWaker = cx.Waker()
	st.mu.Unlock()
	return aio.Pending[Recv[T]]()
}

// Recv returns a future for the next value, for use with Spawn or BlockOn.
func (r *Receiver[T]) Recv() aio.Future[Recv[T]] {
	return aio.FutureFunc[Recv[T]](r.PollRecv)
}

// Close closes the channel from the consumer side: pending and future
// sends fail with [ErrClosed]. Values already buffered are discarded.
func (r *Receiver[T]) Close() {
	st := r.s
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	st.n = 0
	clear(st.buf)
	sendq := st.sendq
	st.sendq = nil
	for _, w := range sendq {
		w.done = true
		w.err = ErrClosed
	}
	st.mu.Unlock()
	for _, w := range sendq {
		if w.waker != nil {
			w.waker.Wake()
		}
	}
}
