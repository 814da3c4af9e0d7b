package aio

import "sync/atomic"

// Worker park states, for unparkOne's benefit.
const (
	parkedAwake int32 = iota
	parkedSleep
	parkedDriver
)

// A worker is one scheduler goroutine: it drains its local queue, steals
// from siblings when idle, and parks (possibly inside the I/O driver) when
// there is nothing to do.
type worker struct {
	sched  *scheduler
	idx    int
	local  runQueue
	parker *parker
	parked atomic.Int32

	tick       uint32
	lifoStreak int
	victim     int // next steal target, round-robin
}

func (w *worker) run() {
	s := w.sched
	defer s.wg.Done()
	for {
		if s.closed.Load() {
			return
		}
		if t := w.nextTask(); t != nil {
			w.runTask(t)
			continue
		}
		if t := w.steal(); t != nil {
			w.runTask(t)
			continue
		}
		if s.closed.Load() {
			return
		}
		w.park()
	}
}

// nextTask applies the fairness order: every globalPollInterval-th pick
// checks the global queue first; otherwise the LIFO slot wins, for at most
// lifoBudget consecutive picks; then the local ring; then a batch from the
// global queue sized by its share per worker.
func (w *worker) nextTask() *task {
	s := w.sched
	w.tick++
	if w.tick%globalPollInterval == 0 {
		if t := s.inject.pop(); t != nil {
			return t
		}
	}
	if w.lifoStreak < lifoBudget {
		if t := w.local.popLIFO(); t != nil {
			w.lifoStreak++
			return t
		}
	}
	w.lifoStreak = 0
	if t := w.local.pop(); t != nil {
		return t
	}
	if t := w.local.popLIFO(); t != nil {
		return t
	}
	n := s.inject.len()/len(s.workers) + 1
	if n > localQueueCap/2 {
		n = localQueueCap / 2
	}
	return s.inject.popBatch(n, &w.local)
}

// steal sweeps sibling queues round-robin from the last victim, taking half
// of the first non-empty ring found. At most half the workers search at
// once; the rest go straight to sleep.
func (w *worker) steal() *task {
	s := w.sched
	n := len(s.workers)
	if n == 1 {
		return nil
	}
	if int(s.searching.Add(1)) > (n+1)/2 {
		s.searching.Add(-1)
		return nil
	}
	defer s.searching.Add(-1)
	for i := 0; i < n; i++ {
		v := s.workers[(w.victim+i)%n]
		if v == w {
			continue
		}
		if t := v.local.stealHalf(&w.local); t != nil {
			w.victim = (w.victim + i + 1) % n
			return t
		}
	}
	return s.inject.pop()
}

func (w *worker) runTask(t *task) {
	requeue, yield := t.poll(w)
	if !requeue {
		return
	}
	s := w.sched
	if yield {
		// A yield goes to the back of the line, never the LIFO slot.
		if !w.local.pushBack(t) && !s.inject.push(t) {
			s.discard(t)
		}
		return
	}
	if overflow := w.local.pushLIFO(t); overflow != nil {
		if !s.inject.push(overflow) {
			s.discard(overflow)
		}
	}
}

// park puts the worker to sleep until new work, I/O readiness, or the next
// timer deadline. One parking worker at a time takes over the I/O driver
// and blocks there; the rest sleep on their parkers.
//
// The parked flag is published before the final queue re-check, mirroring
// schedule's push-then-scan order, so a submission racing with the descent
// into sleep is always seen by one side or the other.
func (w *worker) park() {
	s := w.sched
	rt := s.rt
	if rt.driver != nil && s.driverMu.TryLock() {
		w.parked.Store(parkedDriver)
		if w.local.len() > 0 || s.inject.len() > 0 {
			// Lost a race with a submitter; skip the sleep.
		} else if !s.closed.Load() {
			if err := rt.driver.turn(rt.parkTimeout()); err != nil {
				rt.log.Error("I/O driver turn failed", "err", err)
			}
		}
		w.parked.Store(parkedAwake)
		s.driverMu.Unlock()
		rt.processTimers()
		return
	}
	w.parked.Store(parkedSleep)
	if w.local.len() == 0 && s.inject.len() == 0 && !s.closed.Load() {
		w.parker.park(rt.parkTimeout())
	}
	w.parked.Store(parkedAwake)
	rt.processTimers()
}
