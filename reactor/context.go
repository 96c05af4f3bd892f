// Author: momentics <momentics@gmail.com>
//
// Context is the explicit per-callback handle that replaces the source's
// process-wide "current endpoint" global (SPEC_FULL.md §A.4 / §9).

package reactor

import (
	"time"

	"github.com/momentics/evreactor/internal/timerqueue"
)

// callbackKind identifies which handler method a Context was built for,
// so the timer/read interaction rule (§4.1) can be enforced.
type callbackKind int

const (
	callbackNone callbackKind = iota
	callbackClientInit
	callbackServerInit
	callbackRecvData
	callbackTimerExpired
	callbackUserEvent
	callbackError
	callbackConnectError
)

// denyIORead reports whether this callback kind runs outside an
// endpoint's coroutine, and so cannot perform suspendable reads.
func (k callbackKind) denyIORead() bool {
	switch k {
	case callbackTimerExpired, callbackError, callbackConnectError, callbackUserEvent:
		return true
	default:
		return false
	}
}

// Context is passed to every Handler callback. Its operations are scoped
// to that single invocation.
type Context struct {
	r    *Reactor
	ep   *endpoint // nil for UserEvent and user TimerExpired callbacks, which aren't bound to one endpoint
	kind callbackKind
	coro *coroutine
}

// IOHandle is an opaque reference to a registered endpoint, returned by
// CurrentIO and FindIOByTag.
type IOHandle struct {
	ctx *Context
	ep  *endpoint
}

// Tag returns the endpoint's caller-supplied metadata.
func (h IOHandle) Tag() any { return h.ep.tag }

// State returns the endpoint's current lifecycle state.
func (h IOHandle) State() State { return h.ep.state }

// LastReadError returns the most recent non-retryable read error recorded
// on this endpoint, or nil if none has occurred.
func (h IOHandle) LastReadError() error { return h.ep.lastReadErr }

// Read returns exactly n bytes from this handle's endpoint, or escalates
// to a hard error. Only valid when this handle refers to the endpoint
// whose coroutine is currently running: a timer callback gets
// ErrTimerReadDenied, and an Error, ConnectError or UserEvent callback or
// a read on another endpoint gets ErrCrossEndpointRead — see DESIGN.md's
// Open Question 1 for why cross-endpoint reads from inside another
// callback are not supported by this port.
func (h IOHandle) Read(n int) ([]byte, error) {
	if h.ctx.kind == callbackTimerExpired {
		return nil, ErrTimerReadDenied
	}
	if h.ctx.kind.denyIORead() {
		return nil, ErrCrossEndpointRead
	}
	if h.ctx.coro == nil || h.ep != h.ctx.ep {
		return nil, ErrCrossEndpointRead
	}
	return h.ctx.coro.readN(n)
}

// Write appends p to the endpoint's output buffer; the reactor flushes it
// on the next writability event. Never blocks.
func (h IOHandle) Write(p []byte) error {
	if h.ep.kind == kindListener {
		return ErrNotSupported
	}
	h.ep.appendWrite(p)
	return nil
}

// Seek forwards to the underlying handle if the endpoint is seekable,
// otherwise it is a silent no-op.
func (h IOHandle) Seek(offset int64, whence int) (int64, error) {
	return h.ep.seek(offset, whence)
}

// Close disposes this endpoint.
func (h IOHandle) Close() error {
	return h.ctx.r.disposeTagged(h.ep)
}

// Read is shorthand for ctx.CurrentIO().Read(n).
func (c *Context) Read(n int) ([]byte, error) {
	return c.CurrentIO().Read(n)
}

// Write is shorthand for ctx.CurrentIO().Write(p).
func (c *Context) Write(p []byte) error {
	return c.CurrentIO().Write(p)
}

// Seek is shorthand for ctx.CurrentIO().Seek(offset, whence).
func (c *Context) Seek(offset int64, whence int) (int64, error) {
	return c.CurrentIO().Seek(offset, whence)
}

// Close disposes the current endpoint.
func (c *Context) Close() error {
	return c.CurrentIO().Close()
}

// CurrentIO returns a handle to the endpoint this callback is servicing.
func (c *Context) CurrentIO() IOHandle {
	return IOHandle{ctx: c, ep: c.ep}
}

// FindIOByTag looks up a registered endpoint by its metadata tag. During
// a timer callback the returned handle is write-only, per §4.1's timer/
// read interaction rule: reading it returns ErrTimerReadDenied.
func (c *Context) FindIOByTag(tag any) (IOHandle, bool) {
	ep, ok := c.r.findByTag(tag)
	if !ok {
		return IOHandle{}, false
	}
	return IOHandle{ctx: c, ep: ep}, true
}

// SetMetaInfo reassigns the current endpoint's metadata tag.
func (c *Context) SetMetaInfo(tag any) {
	if c.ep != nil {
		c.r.retag(c.ep, tag)
	}
}

// ScheduleTimer schedules a user timer and returns its handle.
func (c *Context) ScheduleTimer(d time.Duration, tag any, recurring, immediate bool) *timerqueue.Entry {
	return c.r.scheduleTimer(d, tag, recurring, immediate)
}

// CancelTimer cancels a previously scheduled timer.
func (c *Context) CancelTimer(h *timerqueue.Entry) {
	c.r.cancelTimer(h)
}

// AddUserEvent enqueues an event for delivery on the next loop pass.
func (c *Context) AddUserEvent(event any) {
	c.r.addUserEvent(event)
}

// Connect initiates a non-blocking TCP connect from inside a handler
// callback; see Reactor.Connect.
func (c *Context) Connect(addr string, port int, tag any, timeout time.Duration) error {
	return c.r.Connect(addr, port, tag, timeout)
}

// Listen creates a TCP listening socket from inside a handler callback;
// see Reactor.Listen.
func (c *Context) Listen(addr string, port int, tag any) error {
	return c.r.Listen(addr, port, tag)
}

// Open opens a local file from inside a handler callback; see
// Reactor.Open.
func (c *Context) Open(path, mode string, tag any, useErrorHandler bool) error {
	return c.r.Open(path, mode, tag, useErrorHandler)
}

// Stop requests reactor shutdown from inside a handler callback; see
// Reactor.Stop.
func (c *Context) Stop() {
	c.r.Stop()
}
