//go:build windows
// +build windows

// Author: momentics <momentics@gmail.com>
//
// Windows stub poller, mirroring reactor/reactor_stub.go's "unsupported
// platform" posture for the raw-socket path on this build. File-only
// reactors still function since file endpoints bypass the poller.

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
