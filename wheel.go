package aio

import (
	"math"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// The timer wheel is hierarchical: six levels of 64 slots each, 1ms
// resolution. Level l slots are 64^l ticks wide, so near deadlines sit in
// fine buckets and far ones in coarse buckets that cascade down as time
// passes. Insert and cancel are O(1); advancing does work proportional to
// the timers that actually fire or cascade.
const (
	wheelLevels = 6
	wheelBits   = 6
	wheelSlots  = 1 << wheelBits
	wheelMask   = wheelSlots - 1

	tickDuration = time.Millisecond
)

const (
	timerPending uint32 = iota
	timerFired
	timerCancelled
)

// A timerEntry associates one deadline with one waker. It doubles as the
// cancel handle: cancellation flips the state word and the wheel discards
// the entry lazily.
type timerEntry struct {
	when  uint64 // absolute tick
	seq   uint64 // insertion order, stabilizes same-deadline ordering
	waker Waker
	state atomic.Uint32
}

func (e *timerEntry) less(other *timerEntry) bool {
	if e.when != other.when {
		return e.when < other.when
	}
	return e.seq < other.seq
}

func (e *timerEntry) cancel() {
	e.state.CompareAndSwap(timerPending, timerCancelled)
}

func (e *timerEntry) cancelled() bool {
	return e.state.Load() == timerCancelled
}

type wheel struct {
	mu       sync.Mutex
	base     time.Time
	elapsed  uint64 // ticks fully processed
	occupied [wheelLevels]uint64
	slots    [wheelLevels][wheelSlots][]*timerEntry
	overflow priorityqueue[*timerEntry]
	seq      uint64
}

func newWheel(base time.Time) *wheel {
	return &wheel{base: base}
}

// tickCeil converts a deadline to the first tick not before it. Deadlines
// round up, elapsed time rounds down (tickFloor), so a timer can never fire
// before its deadline on a sub-tick technicality.
func (w *wheel) tickCeil(t time.Time) uint64 {
	d := t.Sub(w.base)
	if d <= 0 {
		return 0
	}
	ticks := int64((d + tickDuration - 1) / tickDuration)
	tick, err := safecast.Conv[uint64](ticks)
	if err != nil {
		return math.MaxUint64 >> 1
	}
	return tick
}

// tickFloor converts a clock reading to the last tick fully reached.
func (w *wheel) tickFloor(t time.Time) uint64 {
	d := t.Sub(w.base)
	if d <= 0 {
		return 0
	}
	tick, err := safecast.Conv[uint64](int64(d / tickDuration))
	if err != nil {
		return math.MaxUint64 >> 1
	}
	return tick
}

// insert schedules wk to be woken at deadline. It returns nil when the
// deadline already passed, in which case the caller wakes immediately.
func (w *wheel) insert(deadline time.Time, wk Waker) *timerEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	when := w.tickCeil(deadline)
	if when <= w.elapsed {
		return nil
	}
	w.seq++
	e := &timerEntry{when: when, seq: w.seq, waker: wk}
	w.placeLocked(e, wheelLevels, -1)
	return e
}

// placeLocked files e into the finest level whose window covers it.
// forbidLevel/forbidSlot exclude the slot currently being cascaded so a
// boundary entry cannot be re-filed where it came from; such entries drop
// one level and may wake early, which timer futures tolerate by re-checking
// their deadline.
func (w *wheel) placeLocked(e *timerEntry, forbidLevel, forbidSlot int) {
	for level := 0; level < wheelLevels; level++ {
		shift := uint(wheelBits * level)
		if (e.when>>shift)-(w.elapsed>>shift) >= wheelSlots {
			continue
		}
		slot := int((e.when >> shift) & wheelMask)
		if level > 0 && level == forbidLevel && slot == forbidSlot {
			// Re-file one level down; see comment above.
			level--
			shift = uint(wheelBits * level)
			slot = int((e.when >> shift) & wheelMask)
		}
		w.slots[level][slot] = append(w.slots[level][slot], e)
		w.occupied[level] |= 1 << uint(slot)
		return
	}
	w.overflow.Push(e)
}

// nextEventLocked returns the earliest tick at which a slot must be
// processed, along with its level and slot. The tick is conservative: it
// never exceeds the earliest pending deadline.
func (w *wheel) nextEventLocked() (tick uint64, level, slot int, ok bool) {
	best := uint64(math.MaxUint64)
	for l := 0; l < wheelLevels; l++ {
		bm := w.occupied[l]
		if bm == 0 {
			continue
		}
		shift := uint(wheelBits * l)
		cur := w.elapsed >> shift
		rot := cur & wheelMask
		for bm != 0 {
			idx := uint64(bits.TrailingZeros64(bm))
			bm &^= 1 << idx
			dist := (idx - rot) & wheelMask
			t := (cur + dist) << shift
			if t < w.elapsed {
				t = w.elapsed
			}
			if t < best {
				best, level, slot, ok = t, l, int(idx), true
			}
		}
	}
	return best, level, slot, ok
}

// advance processes all slots due at or before now and returns the wakers
// of fired timers, in processing order. Callers wake them outside the lock.
func (w *wheel) advance(now time.Time) []Waker {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := w.tickFloor(now)
	var fired []Waker

	for {
		// Deadlines parked in the overflow queue fire directly once due.
		for !w.overflow.Empty() {
			head := w.overflow.Peek()
			switch {
			case head.cancelled():
				w.overflow.Pop()
			case head.when <= target:
				w.overflow.Pop()
				if head.state.CompareAndSwap(timerPending, timerFired) {
					fired = append(fired, head.waker)
				}
			default:
				goto wheelSlotsDue
			}
		}
	wheelSlotsDue:
		tick, level, slot, ok := w.nextEventLocked()
		if !ok || tick > target {
			break
		}
		list := w.slots[level][slot]
		w.slots[level][slot] = nil
		w.occupied[level] &^= 1 << uint(slot)
		if tick > w.elapsed {
			w.elapsed = tick
		}
		for _, e := range list {
			switch {
			case e.cancelled():
			case e.when <= target:
				if e.state.CompareAndSwap(timerPending, timerFired) {
					fired = append(fired, e.waker)
				}
			default:
				w.placeLocked(e, level, slot)
			}
		}
	}

	if target > w.elapsed {
		w.elapsed = target
	}
	return fired
}

// nextDeadline returns the duration from now until the wheel next needs
// advancing. The estimate may be early, never late. ok is false when no
// timers are pending.
func (w *wheel) nextDeadline(now time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	best := uint64(math.MaxUint64)
	if tick, _, _, ok := w.nextEventLocked(); ok {
		best = tick
	}
	for !w.overflow.Empty() && w.overflow.Peek().cancelled() {
		w.overflow.Pop()
	}
	if !w.overflow.Empty() {
		if head := w.overflow.Peek(); head.when < best {
			best = head.when
		}
	}
	if best == math.MaxUint64 {
		return 0, false
	}
	at := w.base.Add(time.Duration(best) * tickDuration)
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
