package aio

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// globalPollInterval forces every n-th pick to check the global queue,
	// so injected work cannot starve behind a busy local queue.
	globalPollInterval = 61

	// lifoBudget caps consecutive LIFO-slot picks, so a ping-pong pair of
	// tasks cannot starve the rest of the queue.
	lifoBudget = 3

	// maxParkTime bounds every worker sleep. Wakeups are event-driven; the
	// cap only bounds the damage if one is lost in a park race.
	maxParkTime = time.Second
)

type scheduler struct {
	rt      *Runtime
	workers []*worker
	inject  injectQueue

	// searching counts workers sweeping sibling queues; at most half the
	// pool searches at once.
	searching atomic.Int32
	closed    atomic.Bool

	// driverMu serializes I/O driver ownership: the parking worker that
	// wins TryLock blocks in the driver instead of on its parker.
	driverMu sync.Mutex

	wg sync.WaitGroup
}

func newScheduler(rt *Runtime, n int) *scheduler {
	s := &scheduler{rt: rt}
	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = &worker{sched: s, idx: i, parker: newParker(), victim: i}
	}
	return s
}

func (s *scheduler) start() {
	for _, w := range s.workers {
		s.wg.Add(1)
		go w.run()
	}
}

// submit enqueues an externally spawned task; false once closed.
func (s *scheduler) submit(t *task) bool {
	if !s.inject.push(t) {
		return false
	}
	s.unparkOne()
	return true
}

// schedule requeues a woken task, preferring the queue of the worker that
// last polled it for locality. Tasks with no affinity, or whose preferred
// queue is full, go to the global queue.
func (s *scheduler) schedule(t *task) {
	if idx := t.workerIdx.Load(); idx >= 0 && int(idx) < len(s.workers) {
		if s.workers[idx].local.pushBack(t) {
			s.unparkOne()
			return
		}
	}
	if !s.inject.push(t) {
		s.discard(t)
		return
	}
	s.unparkOne()
}

// discard finishes a task that can no longer run because the runtime shut
// down. Claiming the cell first keeps the at-most-one-poll invariant.
func (s *scheduler) discard(t *task) {
	if t.state.CompareAndSwap(stateScheduled, stateRunning) {
		t.finish(nil, ErrShutdown)
	}
}

// unparkOne wakes one sleeping worker. When the only parked worker is the
// one blocked in the I/O driver, it interrupts the driver instead.
func (s *scheduler) unparkOne() {
	driving := false
	for _, w := range s.workers {
		switch w.parked.Load() {
		case parkedSleep:
			w.parker.unpark()
			return
		case parkedDriver:
			driving = true
		}
	}
	if driving && s.rt.driver != nil {
		s.rt.driver.wakeup()
	}
}

// kick wakes every worker and the driver; used after manual clock advances
// and at shutdown.
func (s *scheduler) kick() {
	for _, w := range s.workers {
		w.parker.unpark()
	}
	if s.rt.driver != nil {
		s.rt.driver.wakeup()
	}
}

// stop closes the queues, waits for the workers to exit, and returns every
// task still queued so the runtime can fail them.
func (s *scheduler) stop() []*task {
	s.closed.Store(true)
	s.kick()
	s.wg.Wait()
	tasks := s.inject.close()
	for _, w := range s.workers {
		tasks = append(tasks, w.local.drain()...)
	}
	return tasks
}
