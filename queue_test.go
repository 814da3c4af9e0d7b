package aio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tasksOf(rt *Runtime, n int) []*task {
	out := make([]*task, n)
	for i := range out {
		out[i] = newTask(rt, &pollProbe{result: Pending[any]()})
	}
	return out
}

func TestRunQueueFIFO(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 3)
	var q runQueue
	for _, tk := range ts {
		require.True(t, q.pushBack(tk))
	}
	for _, tk := range ts {
		assert.Same(t, tk, q.pop())
	}
	assert.Nil(t, q.pop())
}

func TestRunQueueLIFODemotion(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 3)
	var q runQueue

	require.Nil(t, q.pushLIFO(ts[0]))
	// A second LIFO push demotes the first occupant to the ring.
	require.Nil(t, q.pushLIFO(ts[1]))
	require.Nil(t, q.pushLIFO(ts[2]))

	assert.Same(t, ts[2], q.popLIFO())
	assert.Same(t, ts[0], q.pop())
	assert.Same(t, ts[1], q.pop())
}

func TestRunQueueLIFOOverflow(t *testing.T) {
	rt := newInertRuntime()
	var q runQueue
	for _, tk := range tasksOf(rt, localQueueCap) {
		require.True(t, q.pushBack(tk))
	}
	first := newTask(rt, &pollProbe{result: Pending[any]()})
	second := newTask(rt, &pollProbe{result: Pending[any]()})

	require.Nil(t, q.pushLIFO(first))
	// Ring is full: the demoted occupant overflows to the caller.
	assert.Same(t, first, q.pushLIFO(second))
	assert.Same(t, second, q.popLIFO())
}

func TestRunQueueStealHalf(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 7)
	var victim, thief runQueue
	for _, tk := range ts {
		require.True(t, victim.pushBack(tk))
	}
	victim.pushLIFO(newTask(rt, &pollProbe{result: Pending[any]()}))

	got := victim.stealHalf(&thief)
	require.Same(t, ts[0], got, "the thief runs the oldest stolen task first")
	assert.Equal(t, 3, thief.len(), "steal takes half the ring rounded up")
	assert.Equal(t, 4, victim.len(), "the LIFO slot is never stolen")

	assert.Same(t, ts[1], thief.pop())
	assert.Same(t, ts[4], victim.pop())
}

func TestRunQueueStealEmpty(t *testing.T) {
	var victim, thief runQueue
	assert.Nil(t, victim.stealHalf(&thief))
}

func TestRunQueueDrain(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 3)
	var q runQueue
	q.pushBack(ts[0])
	q.pushBack(ts[1])
	q.pushLIFO(ts[2])

	got := q.drain()
	require.Len(t, got, 3)
	assert.Zero(t, q.len())
}

func TestInjectQueueBatch(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 5)
	var inj injectQueue
	for _, tk := range ts {
		require.True(t, inj.push(tk))
	}

	var local runQueue
	got := inj.popBatch(3, &local)
	require.Same(t, ts[0], got)
	assert.Equal(t, 2, local.len())
	assert.Equal(t, 2, inj.len())

	assert.Same(t, ts[1], local.pop())
	assert.Same(t, ts[3], inj.pop())
}

func TestInjectQueueClose(t *testing.T) {
	rt := newInertRuntime()
	ts := tasksOf(rt, 2)
	var inj injectQueue
	inj.push(ts[0])
	inj.push(ts[1])

	drained := inj.close()
	assert.Len(t, drained, 2)
	assert.False(t, inj.push(newTask(rt, &pollProbe{result: Pending[any]()})),
		"a closed queue rejects pushes")
	assert.Nil(t, inj.pop())
}
