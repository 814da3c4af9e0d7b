package aio

import "sync"

// Notify wakes tasks waiting on an edge signal. NotifyOne stores at most
// one permit when nobody is waiting, so a notification and the first
// subsequent wait never miss each other; NotifyAll wakes every current
// waiter and stores nothing.
//
// The zero Notify is ready to use.
type Notify struct {
	mu      sync.Mutex
	permit  bool
	waiters []*notifyWaiter
}

type notifyWaiter struct {
	waker    Waker
	notified bool
}

// NotifyOne delivers one permit: to the longest waiter if any, otherwise
// stored for the next waiter. Repeated calls with no waiter coalesce into
// a single permit.
func (n *Notify) NotifyOne() {
	n.mu.Lock()
	var wk Waker
	if len(n.waiters) > 0 {
		w := n.waiters[0]
		n.waiters = n.waiters[1:]
		w.notified = true
		wk = w.waker
	} else {
		n.permit = true
	}
	n.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
}

// NotifyAll wakes every task currently waiting. Tasks that start waiting
// afterwards wait for the next notification.
func (n *Notify) NotifyAll() {
	n.mu.Lock()
	waiters := n.waiters
	n.waiters = nil
	for _, w := range waiters {
		w.notified = true
	}
	n.mu.Unlock()
	for _, w := range waiters {
		if w.waker != nil {
			w.waker.Wake()
		}
	}
}

// Notified returns a future that completes on the next notification (or
// immediately, consuming a stored permit).
func (n *Notify) Notified() Future[struct{}] {
	return &notifiedFuture{n: n}
}

type notifiedFuture struct {
	n *Notify
	w *notifyWaiter
}

func (f *notifiedFuture) Poll(cx *Context) Poll[struct{}] {
	n := f.n
	n.mu.Lock()
	defer n.mu.Unlock()
	if f.w == nil {
		if n.permit {
			n.permit = false
			return Ready(struct{}{})
		}
		f.w = &notifyWaiter{}
		n.waiters = append(n.waiters, f.w)
	}
	if f.w.notified {
		f.w = nil
		return Ready(struct{}{})
	}
	f.w.waker = cx.Waker()
	return Pending[struct{}]()
}

// Cleanup leaves the wait queue; a permit delivered to this waiter but
// never observed moves on to the next waiter instead of vanishing.
func (f *notifiedFuture) Cleanup() {
	n := f.n
	w := f.w
	f.w = nil
	if w == nil {
		return
	}
	n.mu.Lock()
	if !w.notified {
		for i, q := range n.waiters {
			if q == w {
				n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
				break
			}
		}
		n.mu.Unlock()
		return
	}
	var wk Waker
	if len(n.waiters) > 0 {
		next := n.waiters[0]
		n.waiters = n.waiters[1:]
		next.notified = true
		wk = next.waker
	} else {
		n.permit = true
	}
	n.mu.Unlock()
	if wk != nil {
		wk.Wake()
	}
}
