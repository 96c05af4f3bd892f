// Author: momentics <momentics@gmail.com>
//
// endpoint is the per-I/O-object record described in spec.md §3: raw
// handle, metadata tag, state, output buffer, read coroutine, and
// connect-timeout timer.

package reactor

import (
	"github.com/momentics/evreactor/internal/outbuf"
	"github.com/momentics/evreactor/internal/timerqueue"
)

// State is an endpoint's position in its lifecycle state machine.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateListening
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// endpointKind distinguishes the three concrete handle shapes an
// endpoint can wrap.
type endpointKind int

const (
	kindClient endpointKind = iota
	kindListener
	kindFile
)

// endpoint is one live I/O object registered with the Reactor.
type endpoint struct {
	reactor *Reactor

	kind     endpointKind
	conn     rawConn // nil for listeners (they hold *tcpListener instead)
	listener *tcpListener
	tag      any
	state    State
	seekable bool

	nonSeekOut *outbuf.NonSeekable
	seekOut    *outbuf.Seekable
	writeOff   int64

	coro *coroutine

	lastReadErr     error
	useErrorHandler bool

	connectTimer *timerqueue.Entry
}

// outBuf returns the shared Flush/Empty view over whichever concrete
// output buffer this endpoint owns.
func (ep *endpoint) outBuf() outbuf.Buffer {
	if ep.seekable {
		return ep.seekOut
	}
	return ep.nonSeekOut
}

// appendWrite buffers p for later flushing, preserving the endpoint's
// current write offset for seekable endpoints.
func (ep *endpoint) appendWrite(p []byte) {
	if ep.seekable {
		ep.seekOut.Append(ep.writeOff, p)
		ep.writeOff += int64(len(p))
		return
	}
	ep.nonSeekOut.Append(p)
}

// seek forwards to the underlying handle only if the endpoint is
// seekable; otherwise it is a silent no-op, per §4.2.
func (ep *endpoint) seek(offset int64, whence int) (int64, error) {
	if !ep.seekable {
		return 0, nil
	}
	sc, ok := ep.conn.(rawSeekConn)
	if !ok {
		return 0, nil
	}
	pos, err := sc.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	ep.writeOff = pos
	return pos, nil
}

// fd returns the descriptor the poller would register for this endpoint.
// Listeners and file endpoints route through their own fields.
func (ep *endpoint) fd() uintptr {
	switch ep.kind {
	case kindListener:
		return ep.listener.Fd()
	default:
		return ep.conn.Fd()
	}
}

// close releases the underlying handle; close errors are swallowed, and
// the handle is always closed regardless of flush outcome (resolving the
// "nested begin/rescue" bug the original source had, per SPEC_FULL.md §9).
func (ep *endpoint) close() {
	switch ep.kind {
	case kindListener:
		_ = ep.listener.Close()
	default:
		_ = ep.conn.Close()
	}
}

// flushBestEffort attempts one flush pass, swallowing errors — used only
// during dispose, where the spec requires best-effort draining.
func (ep *endpoint) flushBestEffort() {
	if ep.kind == kindListener {
		return
	}
	defer func() { _ = recover() }()
	_, _ = ep.outBuf().Flush(ep.conn)
}
