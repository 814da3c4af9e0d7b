package aio

import "golang.org/x/sys/unix"

// IOResult is the outcome of one asynchronous I/O operation: bytes moved
// and the error, if any. N == 0 with a nil error on a read means end of
// stream.
type IOResult struct {
	N   int
	Err error
}

// AsyncReader is the poll-based read interface. PollRead follows the poll
// contract: Ready carries the operation's result, Pending means the waker
// fires once the descriptor may have data.
type AsyncReader interface {
	PollRead(cx *Context, p []byte) Poll[IOResult]
}

// AsyncWriter is the poll-based write interface. PollFlush pushes buffered
// data down; PollShutdown flushes and then closes the write side.
type AsyncWriter interface {
	PollWrite(cx *Context, p []byte) Poll[IOResult]
	PollFlush(cx *Context) Poll[IOResult]
	PollShutdown(cx *Context) Poll[IOResult]
}

// An AsyncFD adapts a raw descriptor (socket, pipe) to [AsyncReader] and
// [AsyncWriter] through a runtime's I/O driver. Operations suspend instead
// of blocking; a task that never gets readiness costs nothing but memory.
//
// Methods must be called under the poll contract: exclusive access per
// direction. Concurrent reads by one task and writes by another are fine.
type AsyncFD struct {
	fd  int
	reg *Registration
}

// NewAsyncFD puts fd into non-blocking mode and registers it with rt's I/O
// driver, edge-triggered. The caller keeps ownership of the descriptor and
// closes it after [AsyncFD.Close].
func NewAsyncFD(rt *Runtime, fd int) (*AsyncFD, error) {
	if rt.driver == nil {
		return nil, ErrIODisabled
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	reg, err := rt.driver.register(fd)
	if err != nil {
		return nil, err
	}
	return &AsyncFD{fd: fd, reg: reg}, nil
}

// PollRead reads into p once the descriptor is read-ready. A would-block
// read clears cached readiness, arms the waker and suspends; an interrupted
// read retries immediately and never surfaces EINTR.
func (a *AsyncFD) PollRead(cx *Context, p []byte) Poll[IOResult] {
	for {
		if pr := a.reg.PollReadReady(cx); !pr.Ready {
			return Pending[IOResult]()
		}
		if a.reg.isClosed() {
			return Ready(IOResult{Err: ErrDeregistered})
		}
		n, err := unix.Read(a.fd, p)
		switch err {
		case nil:
			return Ready(IOResult{N: n})
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			a.reg.ClearReadReady()
		default:
			return Ready(IOResult{Err: err})
		}
	}
}

// PollWrite writes from p once the descriptor is write-ready. Short writes
// return the partial count; the caller re-polls with the remainder.
func (a *AsyncFD) PollWrite(cx *Context, p []byte) Poll[IOResult] {
	for {
		if pw := a.reg.PollWriteReady(cx); !pw.Ready {
			return Pending[IOResult]()
		}
		if a.reg.isClosed() {
			return Ready(IOResult{Err: ErrDeregistered})
		}
		n, err := unix.Write(a.fd, p)
		switch err {
		case nil:
			return Ready(IOResult{N: n})
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			a.reg.ClearWriteReady()
		default:
			return Ready(IOResult{Err: err})
		}
	}
}

// PollWritev writes from bufs in one vectored syscall. The result counts
// bytes across all buffers.
func (a *AsyncFD) PollWritev(cx *Context, bufs [][]byte) Poll[IOResult] {
	for {
		if pw := a.reg.PollWriteReady(cx); !pw.Ready {
			return Pending[IOResult]()
		}
		if a.reg.isClosed() {
			return Ready(IOResult{Err: ErrDeregistered})
		}
		n, err := unix.Writev(a.fd, bufs)
		switch err {
		case nil:
			return Ready(IOResult{N: n})
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			a.reg.ClearWriteReady()
		default:
			return Ready(IOResult{Err: err})
		}
	}
}

// IsWriteVectored reports that PollWritev is a genuine vectored write, not
// a loop over PollWrite.
func (a *AsyncFD) IsWriteVectored() bool { return true }

// PollFlush completes immediately: kernel descriptors have no intermediate
// buffer to push.
func (a *AsyncFD) PollFlush(cx *Context) Poll[IOResult] {
	return Ready(IOResult{})
}

// PollShutdown closes the write side of a socket. Descriptors that are not
// sockets have no write side to close and complete cleanly.
func (a *AsyncFD) PollShutdown(cx *Context) Poll[IOResult] {
	err := unix.Shutdown(a.fd, unix.SHUT_WR)
	if err == unix.ENOTSOCK || err == unix.EINVAL || err == unix.ENOTCONN {
		err = nil
	}
	return Ready(IOResult{Err: err})
}

// FD returns the underlying descriptor.
func (a *AsyncFD) FD() int { return a.fd }

// Close deregisters the descriptor from the driver, waking any suspended
// readers or writers with [ErrDeregistered]. It does not close the
// descriptor itself.
func (a *AsyncFD) Close() error {
	return a.reg.Deregister()
}

// Cleanup releases the registration when a task owning the AsyncFD is
// aborted.
func (a *AsyncFD) Cleanup() {
	_ = a.reg.Deregister()
}
