// Author: momentics <momentics@gmail.com>
//
// poller is the readiness-primitive abstraction the reactor multiplexes
// socket file descriptors through. File endpoints never register with a
// poller (see rawconn.go); only TCP sockets do.

package reactor

import "time"

// pollEvent reports readiness for one registered fd.
type pollEvent struct {
	fd       uintptr
	readable bool
	writable bool
	errored  bool
}

// poller is the platform-neutral readiness multiplexer contract, grounded
// on the teacher's epoll wait/register split (see poller_linux.go) but
// widened to carry per-fd read/write interest since this reactor needs
// both directions on the same descriptor.
type poller interface {
	// Add registers fd with the given read/write interest.
	Add(fd uintptr, read, write bool) error
	// SetInterest updates read/write interest for an already-registered fd.
	SetInterest(fd uintptr, read, write bool) error
	// Remove deregisters fd.
	Remove(fd uintptr) error
	// Wait blocks up to timeout (negative means forever) and appends
	// ready events into out, returning the count written.
	Wait(timeout time.Duration, out []pollEvent) (int, error)
	// Close releases the underlying OS resource.
	Close() error
}
