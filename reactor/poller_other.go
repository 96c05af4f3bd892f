//go:build !linux && !windows
// +build !linux,!windows

// Author: momentics <momentics@gmail.com>
//
// Stub poller for platforms with neither the Linux epoll path nor the
// Windows stub, mirroring reactor/reactor_stub.go's "unsupported
// platform" posture. File-only reactors still function since file
// endpoints bypass the poller.

package reactor

import "time"

type stubPoller struct{}

func newPoller() (poller, error) {
	return &stubPoller{}, nil
}

func (p *stubPoller) Add(fd uintptr, read, write bool) error { return ErrNotSupported }
func (p *stubPoller) SetInterest(fd uintptr, read, write bool) error { return ErrNotSupported }
func (p *stubPoller) Remove(fd uintptr) error { return nil }
func (p *stubPoller) Wait(timeout time.Duration, out []pollEvent) (int, error) {
	time.Sleep(timeout)
	return 0, nil
}
func (p *stubPoller) Close() error { return nil }
