package aio

import (
	"sync"
	"time"
)

// A pollEvent is one readiness report from the platform poller, normalized
// across epoll and kqueue.
type pollEvent struct {
	fd     int
	read   bool
	write  bool
	hangup bool
}

// The I/O driver bridges the OS readiness facility (epoll on Linux, kqueue
// on Darwin, always edge-triggered) to registered wakers. One worker at a
// time owns the driver and blocks in turn; everyone else parks on plain
// parkers and gets woken through the driver's wakeup descriptor.
type driver struct {
	poller *poller
	wake   wakeFD

	mu   sync.Mutex
	regs map[int]*Registration

	events []pollEvent
}

func newDriver() (*driver, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	w, err := newWakeFD(p)
	if err != nil {
		p.close()
		return nil, err
	}
	return &driver{
		poller: p,
		wake:   w,
		regs:   make(map[int]*Registration),
		events: make([]pollEvent, 0, 128),
	}, nil
}

// register arms edge-triggered read+write interest for fd and returns its
// registration. The descriptor must already be in non-blocking mode.
func (d *driver) register(fd int) (*Registration, error) {
	r := &Registration{d: d, fd: fd}
	d.mu.Lock()
	if _, dup := d.regs[fd]; dup {
		d.mu.Unlock()
		return nil, errFDRegistered
	}
	d.regs[fd] = r
	d.mu.Unlock()

	if err := d.poller.addFD(fd); err != nil {
		d.mu.Lock()
		delete(d.regs, fd)
		d.mu.Unlock()
		return nil, err
	}
	return r, nil
}

// deregister removes fd from the poller, synchronously: after deregister
// returns, no readiness event can touch the registration again. Wakers
// stored on the registration fire so suspended tasks observe the closure
// instead of hanging.
func (d *driver) deregister(r *Registration) error {
	d.mu.Lock()
	delete(d.regs, r.fd)
	d.mu.Unlock()

	err := d.poller.removeFD(r.fd)

	r.mu.Lock()
	r.closed = true
	rw, ww := r.readWaker, r.writeWaker
	r.readWaker, r.writeWaker = nil, nil
	r.mu.Unlock()
	if rw != nil {
		rw.Wake()
	}
	if ww != nil {
		ww.Wake()
	}
	return err
}

// turn blocks the calling worker until at least one readiness event arrives
// or timeout elapses, then dispatches the matching wakers. timeout < 0
// blocks indefinitely (the wakeup descriptor still unblocks it).
func (d *driver) turn(timeout time.Duration) error {
	events, err := d.poller.wait(timeout, d.events[:0])
	if err != nil {
		return err
	}
	d.events = events[:0]

	var wakers []Waker
	for _, ev := range events {
		if ev.fd == d.wake.readFD() {
			d.wake.drain()
			continue
		}
		d.mu.Lock()
		r := d.regs[ev.fd]
		d.mu.Unlock()
		if r == nil {
			continue
		}
		wakers = r.setReady(ev, wakers)
	}
	for _, w := range wakers {
		w.Wake()
	}
	return nil
}

// wakeup unblocks a turn in progress (or the next one).
func (d *driver) wakeup() {
	d.wake.wake()
}

func (d *driver) close() {
	d.mu.Lock()
	regs := d.regs
	d.regs = make(map[int]*Registration)
	d.mu.Unlock()
	for _, r := range regs {
		r.mu.Lock()
		r.closed = true
		rw, ww := r.readWaker, r.writeWaker
		r.readWaker, r.writeWaker = nil, nil
		r.mu.Unlock()
		if rw != nil {
			rw.Wake()
		}
		if ww != nil {
			ww.Wake()
		}
	}
	d.wake.close()
	d.poller.close()
}

// A Registration associates one descriptor with the wakers awaiting its
// readiness. Readiness is cached edge-triggered state: it stays set until
// the owner observes EAGAIN and clears it, then re-registers interest by
// polling again.
type Registration struct {
	d  *driver
	fd int

	mu         sync.Mutex
	readReady  bool
	writeReady bool
	hangup     bool
	closed     bool
	readWaker  Waker
	writeWaker Waker
}

func (r *Registration) setReady(ev pollEvent, wakers []Waker) []Waker {
	r.mu.Lock()
	if ev.read || ev.hangup {
		r.readReady = true
		if r.readWaker != nil {
			wakers = append(wakers, r.readWaker)
			r.readWaker = nil
		}
	}
	if ev.write || ev.hangup {
		r.writeReady = true
		if r.writeWaker != nil {
			wakers = append(wakers, r.writeWaker)
			r.writeWaker = nil
		}
	}
	if ev.hangup {
		r.hangup = true
	}
	r.mu.Unlock()
	return wakers
}

// PollReadReady completes when the descriptor was reported read-ready since
// readiness was last cleared.
func (r *Registration) PollReadReady(cx *Context) Poll[struct{}] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readReady || r.closed {
		return Ready(struct{}{})
	}
	r.readWaker = cx.Waker()
	return Pending[struct{}]()
}

// ClearReadReady resets cached read readiness after the owner observed
// EAGAIN. The descriptor will not report read-ready again until the next
// edge from the poller.
func (r *Registration) ClearReadReady() {
	r.mu.Lock()
	r.readReady = false
	r.mu.Unlock()
}

// PollWriteReady completes when the descriptor was reported write-ready
// since readiness was last cleared.
func (r *Registration) PollWriteReady(cx *Context) Poll[struct{}] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeReady || r.closed {
		return Ready(struct{}{})
	}
	r.writeWaker = cx.Waker()
	return Pending[struct{}]()
}

// ClearWriteReady resets cached write readiness.
func (r *Registration) ClearWriteReady() {
	r.mu.Lock()
	r.writeReady = false
	r.mu.Unlock()
}

// Deregister removes the descriptor from the driver and releases any stored
// wakers. It is safe to call more than once.
func (r *Registration) Deregister() error {
	return r.d.deregister(r)
}

// dropWakers releases wakers without touching the poller; used by futures
// cancelled mid-suspension.
func (r *Registration) dropWakers() {
	r.mu.Lock()
	r.readWaker = nil
	r.writeWaker = nil
	r.mu.Unlock()
}

func (r *Registration) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
