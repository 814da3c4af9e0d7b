package aio

import "sync"

const localQueueCap = 256

// A runQueue is one worker's local queue: a bounded FIFO ring plus a LIFO
// slot that favors the continuation a task scheduled for itself. The owner
// pushes and pops; idle workers steal half of the ring (never the slot).
// Fine-grained: one short-held mutex per queue.
type runQueue struct {
	mu   sync.Mutex
	ring [localQueueCap]*task
	head int
	size int
	lifo *task
}

// pushLIFO places t in the LIFO slot, demoting any previous occupant to the
// back of the ring. When the ring is full, the demoted task is returned and
// must overflow to the global queue.
func (q *runQueue) pushLIFO(t *task) (overflow *task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.lifo
	q.lifo = t
	if prev == nil {
		return nil
	}
	if q.size == localQueueCap {
		return prev
	}
	q.ring[(q.head+q.size)%localQueueCap] = prev
	q.size++
	return nil
}

// pushBack appends t to the ring, reporting whether it fit.
func (q *runQueue) pushBack(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == localQueueCap {
		return false
	}
	q.ring[(q.head+q.size)%localQueueCap] = t
	q.size++
	return true
}

// popLIFO takes the LIFO slot, if occupied.
func (q *runQueue) popLIFO() *task {
	q.mu.Lock()
	t := q.lifo
	q.lifo = nil
	q.mu.Unlock()
	return t
}

// pop takes the oldest ring entry.
func (q *runQueue) pop() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	t := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) % localQueueCap
	q.size--
	return t
}

// stealHalf moves half of q's ring (rounded up) into dst and returns one
// task for the thief to run immediately. The LIFO slot is not stolen.
func (q *runQueue) stealHalf(dst *runQueue) *task {
	q.mu.Lock()
	n := q.size
	if n == 0 {
		q.mu.Unlock()
		return nil
	}
	take := (n + 1) / 2
	grabbed := make([]*task, 0, take)
	for i := 0; i < take; i++ {
		t := q.ring[q.head]
		q.ring[q.head] = nil
		q.head = (q.head + 1) % localQueueCap
		q.size--
		grabbed = append(grabbed, t)
	}
	q.mu.Unlock()

	first := grabbed[0]
	dst.mu.Lock()
	for _, t := range grabbed[1:] {
		if dst.size == localQueueCap {
			break // cannot happen for an empty thief, defensive for tests
		}
		dst.ring[(dst.head+dst.size)%localQueueCap] = t
		dst.size++
	}
	dst.mu.Unlock()
	return first
}

// drain empties the queue, returning everything including the LIFO slot.
func (q *runQueue) drain() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*task, 0, q.size+1)
	if q.lifo != nil {
		out = append(out, q.lifo)
		q.lifo = nil
	}
	for q.size > 0 {
		out = append(out, q.ring[q.head])
		q.ring[q.head] = nil
		q.head = (q.head + 1) % localQueueCap
		q.size--
	}
	return out
}

func (q *runQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	if q.lifo != nil {
		n++
	}
	return n
}

// An injectQueue is the global FIFO: externally submitted tasks and local
// overflow land here. The slice-with-head layout trades occasional copying
// for allocation-free pops.
type injectQueue struct {
	mu     sync.Mutex
	q      []*task
	head   int
	closed bool
}

func (q *injectQueue) push(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.q = append(q.q, t)
	return true
}

func (q *injectQueue) pop() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *injectQueue) popLocked() *task {
	if q.head >= len(q.q) {
		return nil
	}
	t := q.q[q.head]
	q.q[q.head] = nil
	q.head++
	if q.head >= len(q.q) {
		q.q = q.q[:0]
		q.head = 0
	} else if q.head > 128 && q.head*2 >= len(q.q) {
		q.q = append(q.q[:0], q.q[q.head:]...)
		q.head = 0
	}
	return t
}

// popBatch pops up to n tasks, returning the first directly and pushing the
// rest into the caller's local queue.
func (q *injectQueue) popBatch(n int, dst *runQueue) *task {
	q.mu.Lock()
	first := q.popLocked()
	if first == nil {
		q.mu.Unlock()
		return nil
	}
	batch := make([]*task, 0, n)
	for len(batch) < n-1 {
		t := q.popLocked()
		if t == nil {
			break
		}
		batch = append(batch, t)
	}
	q.mu.Unlock()

	for _, t := range batch {
		if !dst.pushBack(t) {
			// Local queue filled up mid-batch; give the rest back.
			q.push(t)
		}
	}
	return first
}

func (q *injectQueue) close() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	out := make([]*task, 0, len(q.q)-q.head)
	for {
		t := q.popLocked()
		if t == nil {
			break
		}
		out = append(out, t)
	}
	return out
}

func (q *injectQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.q) - q.head
}
