//go:build linux

package aio

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// wakeFD interrupts a blocked poller wait. On Linux it is an eventfd
// registered read-only with the poller.
type wakeFD struct {
	fd int
}

func newWakeFD(p *poller) (wakeFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return wakeFD{}, err
	}
	if err := p.addRead(fd); err != nil {
		unix.Close(fd)
		return wakeFD{}, err
	}
	return wakeFD{fd: fd}, nil
}

func (w wakeFD) readFD() int { return w.fd }

func (w wakeFD) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the counter is saturated; a wake is already pending.
		return
	}
}

func (w wakeFD) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

func (w wakeFD) close() {
	unix.Close(w.fd)
}
