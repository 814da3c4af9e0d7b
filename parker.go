package aio

import "time"

// A parker blocks one worker goroutine until it is unparked or a deadline
// passes. Unpark is sticky: unparking before park makes the next park
// return immediately, so a wakeup between "found no work" and "went to
// sleep" is never lost.
type parker struct {
	ch chan struct{}
}

func newParker() *parker {
	return &parker{ch: make(chan struct{}, 1)}
}

// park blocks until unpark or until d elapses. d < 0 blocks indefinitely.
func (p *parker) park(d time.Duration) {
	if d < 0 {
		<-p.ch
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.ch:
	case <-timer.C:
	}
}

func (p *parker) unpark() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}
