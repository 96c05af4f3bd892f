// Author: momentics <momentics@gmail.com>
//
// rawConn is the minimal non-blocking I/O surface an endpoint drives.
// TCP variants are platform-specific (see rawsocket_linux.go,
// rawsocket_windows.go); fileConn below is portable.

package reactor

import (
	"errors"
	"io"
	"os"

	"github.com/momentics/evreactor/internal/outbuf"
)

// rawConn is the handle surface common to sockets and files.
type rawConn interface {
	Fd() uintptr
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// rawSeekConn additionally supports seeking; only file endpoints satisfy
// this in practice.
type rawSeekConn interface {
	rawConn
	Seek(offset int64, whence int) (int64, error)
}

// parseFileMode maps a caller-supplied mode string to os.OpenFile flags,
// in the register of Python-style fopen modes the surrounding project's
// handlers expect: "r", "w", "a", "r+", "w+", "a+".
func parseFileMode(mode string) (int, os.FileMode) {
	switch mode {
	case "r":
		return os.O_RDONLY, 0
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, 0644
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, 0644
	case "r+":
		return os.O_RDWR, 0
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, 0644
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, 0644
	default:
		return os.O_RDWR | os.O_CREATE, 0644
	}
}

// fileConn wraps *os.File as a rawSeekConn. Regular files never report
// would-block: reads and writes on them complete immediately, so unlike
// socket endpoints a file endpoint is never registered with the
// multiplexer — the reactor treats it as always ready (see
// Reactor.classifyEvents in loop.go).
type fileConn struct {
	f *os.File
}

func newFileConn(f *os.File) *fileConn { return &fileConn{f: f} }

func (c *fileConn) Fd() uintptr { return c.f.Fd() }

func (c *fileConn) Read(p []byte) (int, error) {
	n, err := c.f.Read(p)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}

func (c *fileConn) Write(p []byte) (int, error) {
	return c.f.Write(p)
}

func (c *fileConn) Seek(offset int64, whence int) (int64, error) {
	return c.f.Seek(offset, whence)
}

func (c *fileConn) Close() error { return c.f.Close() }

// isRetryable reports whether err is a transient condition that should
// suspend a read coroutine or leave output buffered for the next
// writability event, rather than escalate to a hard error.
func isRetryable(err error) bool {
	return err != nil && errors.Is(err, outbuf.ErrWouldBlock)
}
