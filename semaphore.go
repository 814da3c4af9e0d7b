package aio

import "sync"

// A Semaphore bounds concurrency to a fixed number of permits. Acquire
// suspends the task instead of the goroutine; waiters are granted permits
// strictly in arrival order, so a stream of fast acquirers cannot starve an
// early waiter.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	waiters []*semWaiter
}

type semWaiter struct {
	waker   Waker
	granted bool
}

// NewSemaphore returns a semaphore with the given number of permits.
func NewSemaphore(permits int) *Semaphore {
	if permits < 0 {
		panic("aio: semaphore with negative permits")
	}
	return &Semaphore{permits: permits}
}

// TryAcquire takes a permit without waiting. It fails while waiters are
// queued even if a permit is free, preserving FIFO order.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permits == 0 || len(s.waiters) > 0 {
		return false
	}
	s.permits--
	return true
}

// Acquire returns a future that completes once a permit is granted. The
// permit must be returned with Release. Aborting a task that is still
// queued gives up its place; aborting one that was granted a permit it
// never observed returns the permit.
func (s *Semaphore) Acquire() Future[struct{}] {
	return &semAcquire{s: s}
}

// Release returns one permit, handing it directly to the longest waiter if
// any.
func (s *Semaphore) Release() {
	s.mu.Lock()
	wk := s.releaseLocked()
	s.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
}

func (s *Semaphore) releaseLocked() Waker {
	if len(s.waiters) == 0 {
		s.permits++
		return nil
	}
	w := s.waiters[0]
	s.waiters = s.waiters[1:]
	w.granted = true
	return w.waker
}

type semAcquire struct {
	s    *Semaphore
	w    *semWaiter
	done bool
}

func (a *semAcquire) Poll(cx *Context) Poll[struct{}] {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.w == nil {
		if s.permits > 0 && len(s.waiters) == 0 {
			s.permits--
			a.done = true
			return Ready(struct{}{})
		}
		a.w = &semWaiter{}
		s.waiters = append(s.waiters, a.w)
	}
	if a.w.granted {
		a.w = nil
		a.done = true
		return Ready(struct{}{})
	}
	a.w.waker = cx.Waker()
	return Pending[struct{}]()
}

// Cleanup runs when the owning task completes or aborts. A completed
// acquire owns its permit and nothing happens here; a queued one leaves the
// line; a granted-but-unobserved one hands the permit back.
func (a *semAcquire) Cleanup() {
	s := a.s
	s.mu.Lock()
	w := a.w
	a.w = nil
	if w == nil {
		s.mu.Unlock()
		return
	}
	if w.granted {
		wk := s.releaseLocked()
		s.mu.Unlock()
		if wk != nil {
			wk.Wake()
		}
		return
	}
	for i, q := range s.waiters {
		if q == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}
