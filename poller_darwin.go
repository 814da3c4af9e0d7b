//go:build darwin

package aio

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller wraps a kqueue; EV_CLEAR gives the same edge-triggered semantics
// as EPOLLET.
type poller struct {
	kq  int
	evs []unix.Kevent_t
}

func newPoller() (*poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &poller{kq: kq, evs: make([]unix.Kevent_t, 128)}, nil
}

// addFD arms edge-triggered read+write interest for fd. Descriptors that do
// not support the write filter (a pipe read end, for one) keep their read
// registration; the write filter error is dropped.
func (p *poller) addFD(fd int) error {
	read := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{read}, nil, nil); err != nil {
		return err
	}
	write := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_WRITE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	_, _ = unix.Kevent(p.kq, []unix.Kevent_t{write}, nil, nil)
	return nil
}

// addRead arms edge-triggered read interest only; used for the wakeup pipe.
func (p *poller) addRead(fd int) error {
	read := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{read}, nil, nil)
	return err
}

func (p *poller) removeFD(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	for _, c := range changes {
		if _, err := unix.Kevent(p.kq, []unix.Kevent_t{c}, nil, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
			return err
		}
	}
	return nil
}

// wait blocks until events arrive or timeout elapses; timeout < 0 blocks
// indefinitely. Interrupted waits are retried.
func (p *poller) wait(timeout time.Duration, into []pollEvent) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		v := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &v
	}
	var n int
	for {
		var err error
		n, err = unix.Kevent(p.kq, nil, p.evs, ts)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return into, err
		}
		break
	}
	for _, ev := range p.evs[:n] {
		hup := ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0
		into = append(into, pollEvent{
			fd:     int(ev.Ident),
			read:   ev.Filter == unix.EVFILT_READ,
			write:  ev.Filter == unix.EVFILT_WRITE,
			hangup: hup,
		})
	}
	return into, nil
}

func (p *poller) close() error {
	return unix.Close(p.kq)
}
