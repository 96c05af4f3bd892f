//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
//
// Non-Linux builds have no raw-fd poller to wake (see poller_windows.go),
// so the wakeup pipe degrades to an in-process flag; Stop is still
// observed promptly because the stub poller's Wait is timeout-bounded.

package reactor

type wakeupPipe struct {
	signalled chan struct{}
}

func newWakeupPipe() (*wakeupPipe, error) {
	return &wakeupPipe{signalled: make(chan struct{}, 1)}, nil
}

func (wp *wakeupPipe) fd() uintptr { return 0 }

func (wp *wakeupPipe) signal() {
	select {
	case wp.signalled <- struct{}{}:
	default:
	}
}

func (wp *wakeupPipe) drain() {
	select {
	case <-wp.signalled:
	default:
	}
}

func (wp *wakeupPipe) close() {}
