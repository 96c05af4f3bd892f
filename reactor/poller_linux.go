//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poller, grounded on reactor/reactor_linux.go and
// reactor/epoll_reactor.go from the teacher tree.

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd int
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

func eventsFor(read, write bool) uint32 {
	var ev uint32
	if read {
		ev |= unix.EPOLLIN
	}
	if write {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Add(fd uintptr, read, write bool) error {
	ev := &unix.EpollEvent{Events: eventsFor(read, write), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), ev)
}

func (p *epollPoller) SetInterest(fd uintptr, read, write bool) error {
	ev := &unix.EpollEvent{Events: eventsFor(read, write), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

func (p *epollPoller) Remove(fd uintptr) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (p *epollPoller) Wait(timeout time.Duration, out []pollEvent) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	raw := make([]unix.EpollEvent, len(out))
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		out[i] = pollEvent{
			fd:       uintptr(raw[i].Fd),
			readable: raw[i].Events&unix.EPOLLIN != 0,
			writable: raw[i].Events&unix.EPOLLOUT != 0,
			errored:  raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
