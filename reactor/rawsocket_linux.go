//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
//
// Linux raw non-blocking TCP socket primitives, grounded on the same
// golang.org/x/sys/unix calls the teacher's internal/transport/transport_linux.go
// and reactor/reactor_linux.go use for epoll and zero-copy sockets.

package reactor

import (
	"io"
	"net"

	"github.com/momentics/evreactor/internal/outbuf"
	"golang.org/x/sys/unix"
)

// tcpConn wraps a non-blocking TCP socket file descriptor.
type tcpConn struct {
	fd int
}

func (c *tcpConn) Fd() uintptr { return uintptr(c.fd) }

func (c *tcpConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, outbuf.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		// A zero-byte read on a socket means the peer performed an
		// orderly shutdown.
		return 0, io.EOF
	}
	return n, nil
}

func (c *tcpConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return n, outbuf.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (c *tcpConn) Close() error {
	return unix.Close(c.fd)
}

// newNonblockingSocket creates an AF_INET/SOCK_STREAM non-blocking
// socket.
func newNonblockingSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// dialTCPNonblocking begins a non-blocking connect and reports whether it
// completed synchronously.
func dialTCPNonblocking(addr string, port int) (conn *tcpConn, completed bool, err error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		ips, rerr := net.LookupIP(addr)
		if rerr != nil || len(ips) == 0 {
			return nil, false, rerr
		}
		ip = ips[0]
	}
	fd, err := newNonblockingSocket()
	if err != nil {
		return nil, false, err
	}
	sa := ipToSockaddr(ip, port)
	err = unix.Connect(fd, sa)
	if err == nil {
		return &tcpConn{fd: fd}, true, nil
	}
	if err == unix.EINPROGRESS {
		return &tcpConn{fd: fd}, false, nil
	}
	unix.Close(fd)
	return nil, false, err
}

// finalizeConnect checks SO_ERROR on a Connecting socket once it reports
// writable, returning nil if the connect succeeded.
func finalizeConnect(c *tcpConn) error {
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// tcpListener wraps a non-blocking listening socket.
type tcpListener struct {
	fd int
}

func (l *tcpListener) Fd() uintptr { return uintptr(l.fd) }
func (l *tcpListener) Close() error { return unix.Close(l.fd) }

// listenTCPNonblocking creates, binds, and listens on a non-blocking TCP
// socket with SO_REUSEADDR set, per §6's network surface.
func listenTCPNonblocking(addr string, port, backlog int) (*tcpListener, error) {
	fd, err := newNonblockingSocket()
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	ip := net.ParseIP(addr)
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4zero
	}
	sa := ipToSockaddr(ip, port)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &tcpListener{fd: fd}, nil
}

// acceptTCPNonblocking accepts a pending connection, returning
// outbuf.ErrWouldBlock when none is pending.
func acceptTCPNonblocking(l *tcpListener) (*tcpConn, string, int, error) {
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, "", 0, outbuf.ErrWouldBlock
		}
		return nil, "", 0, err
	}
	addr, port := sockaddrToIPPort(sa)
	return &tcpConn{fd: nfd}, addr, port, nil
}

func ipToSockaddr(ip net.IP, port int) unix.Sockaddr {
	var b [4]byte
	v4 := ip.To4()
	if v4 != nil {
		copy(b[:], v4)
	}
	return &unix.SockaddrInet4{Port: port, Addr: b}
}

func sockaddrToIPPort(sa unix.Sockaddr) (string, int) {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		ip := net.IP(sa4.Addr[:])
		return ip.String(), sa4.Port
	}
	return "", 0
}
