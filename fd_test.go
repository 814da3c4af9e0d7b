package aio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/b97tsk/aio"
)

func newIORuntime(t *testing.T) *aio.Runtime {
	t.Helper()
	rt, err := aio.New(aio.Config{Workers: 2, Name: t.Name()})
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

func makePipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// readTask reads one chunk from an AsyncFD and completes with it.
type readTask struct {
	fd      *aio.AsyncFD
	buf     []byte
	started chan struct{}
	first   bool
}

func (r *readTask) Poll(cx *aio.Context) aio.Poll[aio.IOResult] {
	if !r.first {
		r.first = true
		defer close(r.started)
	}
	return r.fd.PollRead(cx, r.buf)
}

func (r *readTask) Cleanup() { r.fd.Cleanup() }

func TestAsyncFDReadWakeup(t *testing.T) {
	rt := newIORuntime(t)
	rfd, wfd := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, rfd)
	require.NoError(t, err)

	task := &readTask{fd: afd, buf: make([]byte, 16), started: make(chan struct{})}
	h := aio.Spawn(rt, task)
	<-task.started

	time.Sleep(10 * time.Millisecond)
	require.False(t, h.Done(), "an empty pipe must suspend the reader")

	n, err := unix.Write(wfd, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	res, err := h.Join()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.N)
	assert.Equal(t, "ping", string(task.buf[:res.N]))
	require.NoError(t, afd.Close())
}

func TestAsyncFDReadEOF(t *testing.T) {
	rt := newIORuntime(t)
	rfd, wfd := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, rfd)
	require.NoError(t, err)
	defer afd.Close()

	task := &readTask{fd: afd, buf: make([]byte, 16), started: make(chan struct{})}
	h := aio.Spawn(rt, task)
	<-task.started

	require.NoError(t, unix.Close(wfd))
	res, err := h.Join()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Zero(t, res.N, "a closed write end reads as end of stream")
}

func TestAsyncFDCloseWakesReader(t *testing.T) {
	rt := newIORuntime(t)
	rfd, _ := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, rfd)
	require.NoError(t, err)

	task := &readTask{fd: afd, buf: make([]byte, 16), started: make(chan struct{})}
	h := aio.Spawn(rt, task)
	<-task.started

	require.NoError(t, afd.Close())
	res, err := h.Join()
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, aio.ErrDeregistered)
}

func TestAsyncFDWrite(t *testing.T) {
	rt := newIORuntime(t)
	rfd, wfd := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, wfd)
	require.NoError(t, err)
	defer afd.Close()

	h := aio.Spawn(rt, aio.FutureFunc[aio.IOResult](
		func(cx *aio.Context) aio.Poll[aio.IOResult] {
			return afd.PollWrite(cx, []byte("hello"))
		}))
	res, err := h.Join()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.N)

	buf := make([]byte, 16)
	n, err := unix.Read(rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestAsyncFDWritev(t *testing.T) {
	rt := newIORuntime(t)
	rfd, wfd := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, wfd)
	require.NoError(t, err)
	defer afd.Close()
	assert.True(t, afd.IsWriteVectored())

	bufs := [][]byte{[]byte("hello "), []byte("world")}
	h := aio.Spawn(rt, aio.FutureFunc[aio.IOResult](
		func(cx *aio.Context) aio.Poll[aio.IOResult] {
			return afd.PollWritev(cx, bufs)
		}))
	res, err := h.Join()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 11, res.N)

	buf := make([]byte, 32)
	n, err := unix.Read(rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestAsyncFDFlushAndShutdownOnPipe(t *testing.T) {
	rt := newIORuntime(t)
	_, wfd := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, wfd)
	require.NoError(t, err)
	defer afd.Close()

	cx := aio.NewContext(rt, &wakeCount{})
	p := afd.PollFlush(cx)
	require.True(t, p.Ready)
	assert.NoError(t, p.Value.Err)

	// Not a socket: shutting down the write side is a clean no-op.
	p = afd.PollShutdown(cx)
	require.True(t, p.Ready)
	assert.NoError(t, p.Value.Err)
}

func TestAsyncFDShutdownOnSocket(t *testing.T) {
	rt := newIORuntime(t)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})

	afd, err := aio.NewAsyncFD(rt, fds[0])
	require.NoError(t, err)
	defer afd.Close()

	cx := aio.NewContext(rt, &wakeCount{})
	p := afd.PollShutdown(cx)
	require.True(t, p.Ready)
	require.NoError(t, p.Value.Err)

	// The peer observes end of stream.
	buf := make([]byte, 8)
	n, err := unix.Read(fds[1], buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewAsyncFDOnIODisabledRuntime(t *testing.T) {
	rt, err := aio.New(aio.Config{Workers: 1, DisableIO: true})
	require.NoError(t, err)
	defer rt.Shutdown()

	rfd, _ := makePipe(t)
	_, err = aio.NewAsyncFD(rt, rfd)
	assert.ErrorIs(t, err, aio.ErrIODisabled)
}

// TestAbortReleasesRegistration aborts a task suspended on an empty pipe;
// the registration is gone before Abort returns, so a second AsyncFD can
// register the same descriptor immediately.
func TestAbortReleasesRegistration(t *testing.T) {
	rt := newIORuntime(t)
	rfd, _ := makePipe(t)

	afd, err := aio.NewAsyncFD(rt, rfd)
	require.NoError(t, err)

	task := &readTask{fd: afd, buf: make([]byte, 8), started: make(chan struct{})}
	h := aio.Spawn(rt, task)
	<-task.started

	h.Abort()
	_, err = h.Join()
	require.ErrorIs(t, err, aio.ErrTaskAborted)

	again, err := aio.NewAsyncFD(rt, rfd)
	require.NoError(t, err, "the aborted task's registration must be released")
	require.NoError(t, again.Close())
}
