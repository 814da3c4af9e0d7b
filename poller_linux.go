//go:build linux

package aio

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller wraps an epoll instance in edge-triggered mode.
type poller struct {
	epfd int
	evs  []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: epfd, evs: make([]unix.EpollEvent, 128)}, nil
}

// addFD arms edge-triggered read+write interest for fd.
func (p *poller) addFD(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// addRead arms edge-triggered read interest only; used for the wakeup
// descriptor.
func (p *poller) addRead(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *poller) removeFD(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

// wait blocks until events arrive or timeout elapses; timeout < 0 blocks
// indefinitely. Interrupted waits are retried, sub-millisecond timeouts
// rounded up so a short timeout never spins.
func (p *poller) wait(timeout time.Duration, into []pollEvent) ([]pollEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if timeout%time.Millisecond != 0 {
			ms++
		}
	}
	var n int
	for {
		var err error
		n, err = unix.EpollWait(p.epfd, p.evs, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return into, err
		}
		break
	}
	for _, ev := range p.evs[:n] {
		into = append(into, pollEvent{
			fd:     int(ev.Fd),
			read:   ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0,
			write:  ev.Events&unix.EPOLLOUT != 0,
			hangup: ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		})
	}
	return into, nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
