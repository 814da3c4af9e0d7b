package aio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInertRuntime returns a runtime with no worker goroutines; tests drive
// queued tasks by hand, which makes state transitions deterministic.
func newInertRuntime() *Runtime {
	rt := &Runtime{clock: systemClock{}, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rt.sched = newScheduler(rt, 0)
	return rt
}

func (rt *Runtime) runQueued() int {
	n := 0
	for {
		t := rt.sched.inject.pop()
		if t == nil {
			return n
		}
		t.poll(nil)
		n++
	}
}

type countWaker struct {
	n atomic.Int32
}

func (w *countWaker) Wake() { w.n.Add(1) }

type pollProbe struct {
	polls    atomic.Int32
	cleanups atomic.Int32
	result   Poll[any]
}

func (p *pollProbe) Poll(cx *Context) Poll[any] {
	p.polls.Add(1)
	return p.result
}

func (p *pollProbe) Cleanup() { p.cleanups.Add(1) }

func TestTaskWakeCoalesce(t *testing.T) {
	rt := newInertRuntime()
	probe := &pollProbe{result: Pending[any]()}
	tk := newTask(rt, probe)

	tk.poll(nil)
	require.Equal(t, int32(1), probe.polls.Load())
	require.Equal(t, uint32(stateIdle), tk.state.Load())

	for i := 0; i < 5; i++ {
		tk.Wake()
	}
	assert.Equal(t, 1, rt.sched.inject.len(), "wakes before the next poll must coalesce")
	assert.Equal(t, 1, rt.runQueued())
	assert.Equal(t, int32(2), probe.polls.Load())
}

func TestTaskWakeAfterDone(t *testing.T) {
	rt := newInertRuntime()
	probe := &pollProbe{result: Ready[any]("done")}
	tk := newTask(rt, probe)

	tk.poll(nil)
	require.True(t, tk.completed())

	tk.Wake()
	assert.Equal(t, 0, rt.sched.inject.len(), "waking a completed task must not requeue it")
	assert.Equal(t, int32(1), probe.cleanups.Load())
}

func TestTaskNotifiedDuringPoll(t *testing.T) {
	rt := newInertRuntime()
	var tk *task
	f := FutureFunc[any](func(cx *Context) Poll[any] {
		cx.Waker().Wake()
		return Pending[any]()
	})
	tk = newTask(rt, f)

	requeue, yield := tk.poll(nil)
	assert.True(t, requeue, "a wake during the poll must requeue through the caller")
	assert.False(t, yield)
	assert.Equal(t, uint32(stateScheduled), tk.state.Load())
	assert.Equal(t, 0, rt.sched.inject.len(), "the wake must not double-enqueue")
}

func TestTaskYieldMarked(t *testing.T) {
	rt := newInertRuntime()
	f := FutureFunc[any](func(cx *Context) Poll[any] {
		cx.markYield()
		cx.Waker().Wake()
		return Pending[any]()
	})
	tk := newTask(rt, f)

	requeue, yield := tk.poll(nil)
	assert.True(t, requeue)
	assert.True(t, yield)
}

func TestTaskPanicContained(t *testing.T) {
	rt := newInertRuntime()
	f := FutureFunc[any](func(cx *Context) Poll[any] {
		panic("boom")
	})
	tk := newTask(rt, f)

	tk.poll(nil)
	require.True(t, tk.completed())

	var pe *PanicError
	require.ErrorAs(t, tk.err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestTaskAbortIdleIsSynchronous(t *testing.T) {
	rt := newInertRuntime()
	probe := &pollProbe{result: Pending[any]()}
	tk := newTask(rt, probe)
	tk.poll(nil)
	require.Equal(t, uint32(stateIdle), tk.state.Load())

	tk.abort()
	assert.True(t, tk.completed())
	assert.ErrorIs(t, tk.err, ErrTaskAborted)
	assert.Equal(t, int32(1), probe.cleanups.Load(), "cleanup must run before abort returns")

	// A straggling wake after the synchronous abort is a no-op.
	tk.Wake()
	assert.Equal(t, 0, rt.sched.inject.len())
	assert.Equal(t, int32(1), probe.polls.Load())
}

func TestTaskAbortQueuedSkipsPoll(t *testing.T) {
	rt := newInertRuntime()
	probe := &pollProbe{result: Pending[any]()}
	tk := newTask(rt, probe)
	rt.sched.submit(tk)

	tk.abort()
	rt.runQueued()
	assert.True(t, tk.completed())
	assert.ErrorIs(t, tk.err, ErrTaskAborted)
	assert.Zero(t, probe.polls.Load(), "an aborted queued task must not be polled")
	assert.Equal(t, int32(1), probe.cleanups.Load())
}

func TestTaskJoinWaker(t *testing.T) {
	rt := newInertRuntime()
	probe := &pollProbe{result: Pending[any]()}
	tk := newTask(rt, probe)
	tk.poll(nil)

	w := &countWaker{}
	require.False(t, tk.setJoinWaker(w))

	tk.Wake()
	probe.result = Ready[any](42)
	rt.runQueued()
	require.True(t, tk.completed())
	assert.Equal(t, int32(1), w.n.Load())
	assert.Equal(t, 42, tk.result)
}

// TestTaskAtMostOnePoll hammers a pending task with concurrent wakes on a
// live runtime and checks that no two polls ever overlap.
func TestTaskAtMostOnePoll(t *testing.T) {
	rt, err := New(Config{Workers: 4, DisableIO: true, DisableTimer: true})
	require.NoError(t, err)
	defer rt.Shutdown()

	var inPoll atomic.Int32
	var overlapped atomic.Bool
	var polls atomic.Int32

	f := FutureFunc[struct{}](func(cx *Context) Poll[struct{}] {
		if inPoll.Add(1) != 1 {
			overlapped.Store(true)
		}
		defer inPoll.Add(-1)
		if polls.Add(1) >= 200 {
			return Ready(struct{}{})
		}
		return Pending[struct{}]()
	})
	h := Spawn(rt, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !h.Done() {
				h.cell.Wake()
			}
		}()
	}
	_, joinErr := h.Join()
	wg.Wait()

	require.NoError(t, joinErr)
	assert.False(t, overlapped.Load(), "two workers polled the task concurrently")
}

func TestPanicErrorUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	pe := &PanicError{Value: sentinel}
	assert.ErrorIs(t, pe, sentinel)
	assert.Nil(t, (&PanicError{Value: "text"}).Unwrap())
}
