//go:build !linux && !windows
// +build !linux,!windows

// Author: momentics <momentics@gmail.com>
//
// No raw-socket reactor path on platforms outside the Linux epoll build
// and the Windows stub, mirroring the teacher's own asymmetry (full epoll
// support on Linux, a narrower stub everywhere else — see
// reactor/reactor_stub.go, pool/numa_stub.go, affinity/affinity_stub.go).
// TCP-backed endpoints are not supported here; file endpoints still work
// since fileConn is portable.

package reactor

type tcpConn struct{}

func (c *tcpConn) Fd() uintptr { return 0 }
func (c *tcpConn) Read(p []byte) (int, error) { return 0, ErrNotSupported }
func (c *tcpConn) Write(p []byte) (int, error) { return 0, ErrNotSupported }
func (c *tcpConn) Close() error { return nil }

type tcpListener struct{}

func (l *tcpListener) Fd() uintptr { return 0 }
func (l *tcpListener) Close() error { return nil }

func dialTCPNonblocking(addr string, port int) (*tcpConn, bool, error) {
	return nil, false, ErrNotSupported
}

func finalizeConnect(c *tcpConn) error { return ErrNotSupported }

func listenTCPNonblocking(addr string, port, backlog int) (*tcpListener, error) {
	return nil, ErrNotSupported
}

func acceptTCPNonblocking(l *tcpListener) (*tcpConn, string, int, error) {
	return nil, "", 0, ErrNotSupported
}
