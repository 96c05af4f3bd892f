// Author: momentics <momentics@gmail.com>
//
// coroutine binds one suspendable read body to its endpoint. It is
// implemented as a goroutine parked on a channel rendezvous rather than a
// stackful fiber, per the design note in SPEC_FULL.md §9 option (b): the
// reactor never proceeds past Resume until the coroutine either yields
// (suspends on a would-block read) or finishes, so at most one coroutine
// body executes at any instant across the whole reactor.

package reactor

import (
	"fmt"
)

// coroState reports why a coroutine handed control back to the reactor.
type coroState int

const (
	coroDone coroState = iota
	coroSuspended
	coroHardError
)

type coroResult struct {
	state coroState
	err   error
}

// hardReadError unwinds a coroutine body when a non-retryable read error
// occurs and use_error_handler is enabled, so the reactor (not the
// handler body) performs the Error callback and disposal.
type hardReadError struct{ err error }

// coroutine is the per-endpoint suspendable read body.
type coroutine struct {
	ep      *endpoint
	body    func(ctx *Context)
	kind    callbackKind
	resume  chan struct{}
	yield   chan coroResult
	started bool
	alive   bool
}

func newCoroutine(ep *endpoint, kind callbackKind, body func(ctx *Context)) *coroutine {
	return &coroutine{
		ep:     ep,
		body:   body,
		kind:   kind,
		resume: make(chan struct{}),
		yield:  make(chan coroResult),
	}
}

// Resume starts the coroutine (on first call) or lets a suspended one
// continue, then blocks until it yields or finishes.
func (c *coroutine) Resume() coroResult {
	if !c.started {
		c.started = true
		c.alive = true
		go c.run()
	} else {
		c.resume <- struct{}{}
	}
	res := <-c.yield
	if res.state != coroSuspended {
		c.alive = false
	}
	return res
}

func (c *coroutine) run() {
	ctx := &Context{r: c.ep.reactor, ep: c.ep, kind: c.kind, coro: c}
	defer func() {
		if rec := recover(); rec != nil {
			if hre, ok := rec.(hardReadError); ok {
				c.yield <- coroResult{state: coroHardError, err: hre.err}
				return
			}
			c.yield <- coroResult{state: coroHardError, err: fmt.Errorf("panic in handler callback: %v", rec)}
			return
		}
	}()
	c.body(ctx)
	c.yield <- coroResult{state: coroDone}
}

// suspend is called from inside Context.Read when the underlying handle
// is not yet ready; it yields to the reactor and blocks until resumed.
func (c *coroutine) suspend() {
	c.yield <- coroResult{state: coroSuspended}
	<-c.resume
}

// readN returns exactly n bytes, suspending across readiness events as
// needed and never returning short. A non-retryable error unwinds the
// coroutine via hardReadError when use_error_handler is set; otherwise it
// is returned directly to the caller, per §7's write/read-time error
// surfacing rule.
func (c *coroutine) readN(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := make([]byte, n-len(out))
		r, err := c.ep.conn.Read(chunk)
		if r > 0 {
			out = append(out, chunk[:r]...)
		}
		if err == nil {
			continue
		}
		if isRetryable(err) {
			if len(out) >= n {
				break
			}
			c.suspend()
			continue
		}
		c.ep.lastReadErr = err
		if c.ep.useErrorHandler {
			panic(hardReadError{err: err})
		}
		return out, err
	}
	return out, nil
}
