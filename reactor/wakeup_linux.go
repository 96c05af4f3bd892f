//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>

package reactor

import "golang.org/x/sys/unix"

type wakeupPipe struct {
	r, w int
}

func newWakeupPipe() (*wakeupPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakeupPipe{r: fds[0], w: fds[1]}, nil
}

func (wp *wakeupPipe) fd() uintptr { return uintptr(wp.r) }

// signal writes one sentinel byte, waking a blocked poller.
func (wp *wakeupPipe) signal() {
	var b [1]byte
	_, _ = unix.Write(wp.w, b[:])
}

// drain consumes any pending bytes so the pipe's readability doesn't
// re-trigger a level-triggered poller indefinitely.
func (wp *wakeupPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(wp.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (wp *wakeupPipe) close() {
	_ = unix.Close(wp.r)
	_ = unix.Close(wp.w)
}
