//go:build darwin

package aio

import "golang.org/x/sys/unix"

// wakeFD interrupts a blocked poller wait. On Darwin it is a non-blocking
// pipe whose read end is registered with the kqueue.
type wakeFD struct {
	r, w int
}

func newWakeFD(p *poller) (wakeFD, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return wakeFD{}, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return wakeFD{}, err
		}
	}
	if err := p.addRead(fds[0]); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return wakeFD{}, err
	}
	return wakeFD{r: fds[0], w: fds[1]}, nil
}

func (w wakeFD) readFD() int { return w.r }

func (w wakeFD) wake() {
	var buf [1]byte
	for {
		_, err := unix.Write(w.w, buf[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the pipe is full; a wake is already pending.
		return
	}
}

func (w wakeFD) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n < len(buf) {
			return
		}
	}
}

func (w wakeFD) close() {
	unix.Close(w.r)
	unix.Close(w.w)
}
