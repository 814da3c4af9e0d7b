// Package broadcast provides a bounded fan-out channel: every receiver
// observes every value sent after it subscribed, in send order.
//
// The channel never blocks senders. It keeps the last capacity values in a
// ring; a receiver that falls further behind than that loses the oldest
// values and observes a [LaggedError] counting them, once, before resuming
// from the oldest retained value.
package broadcast

import (
	"errors"
	"fmt"
	"sync"

	"github.com/b97tsk/aio"
)

// ErrClosed is observed by receivers once the channel is closed and their
// backlog is drained.
var ErrClosed = errors.New("broadcast: channel closed")

// A LaggedError reports how many values a slow receiver missed.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: receiver lagged, missed %d values", e.Missed)
}

// Recv is one receive outcome: a value, or a *LaggedError, or ErrClosed.
type Recv[T any] struct {
	Value T
	Err   error
}

// New returns a broadcast channel retaining the last capacity values.
// Capacity must be at least 1.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		panic("broadcast: capacity must be at least 1")
	}
	return &Channel[T]{buf: make([]T, capacity)}
}

// A Channel is the shared send side. All methods are safe for concurrent
// use.
type Channel[T any] struct {
	mu      sync.Mutex
	buf     []T
	tail    uint64 // absolute position of the next send
	recvs   int
	closed  bool
	waiters []aio.Waker
}

// Send delivers v to every current subscriber and returns their count.
// Send never blocks; a full ring overwrites the oldest value, which lagged
// receivers observe as a miss.
func (c *Channel[T]) Send(v T) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.buf[c.tail%uint64(len(c.buf))] = v
	c.tail++
	n := c.recvs
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w.Wake()
	}
	return n
}

// Subscribe returns a receiver positioned at the next value to be sent;
// it sees nothing from before the subscription.
func (c *Channel[T]) Subscribe() *Receiver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvs++
	return &Receiver[T]{c: c, next: c.tail}
}

// Close marks the channel closed. Receivers drain their backlog and then
// observe [ErrClosed].
func (c *Channel[T]) Close() {
	c.mu.Lock()
	c.closed = true
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w.Wake()
	}
}

// A Receiver consumes the channel from its own cursor. One receiver must
// not be polled from two tasks at once.
type Receiver[T any] struct {
	c      *Channel[T]
	next   uint64
	closed bool
}

// PollRecv takes the next value at this receiver's cursor. A receiver that
// lagged beyond the ring observes the miss count once, then continues from
// the oldest retained value.
func (r *Receiver[T]) PollRecv(cx *aio.Context) aio.Poll[Recv[T]] {
	c := r.c
	c.mu.Lock()
	if r.next < c.tail {
		oldest := uint64(0)
		if c.tail > uint64(len(c.buf)) {
			oldest = c.tail - uint64(len(c.buf))
		}
		if r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			c.mu.Unlock()
			return aio.Ready(Recv[T]{Err: &LaggedError{Missed: missed}})
		}
		v := c.buf[r.next%uint64(len(c.buf))]
		r.next++
		c.mu.Unlock()
		return aio.Ready(Recv[T]{Value: v})
	}
	if c.closed {
		c.mu.Unlock()
		return aio.Ready(Recv[T]{Err: ErrClosed})
	}
	c.waiters = append(c.waiters, cx.Waker())
	c.mu.Unlock()
	return aio.Pending[Recv[T]]()
}

// Recv returns a future for the next value.
func (r *Receiver[T]) Recv() aio.Future[Recv[T]] {
	return aio.FutureFunc[Recv[T]](r.PollRecv)
}

// Close unsubscribes the receiver.
func (r *Receiver[T]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	c := r.c
	c.mu.Lock()
	c.recvs--
	c.mu.Unlock()
}
