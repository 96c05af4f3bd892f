// Author: momentics <momentics@gmail.com>
//
// loop.go implements the single-threaded dispatch pass described by
// spec.md §4.1: build the conceptual read/write sets, check for a drained
// shutdown, drain due timers, deliver queued user events, multiplex, and
// dispatch readiness with reads ordered before writes.

package reactor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/momentics/evreactor/internal/timerqueue"
)

// Start runs the reactor's dispatch loop until Stop is called and all
// pending output has drained, or a poller error aborts it.
func (r *Reactor) Start() error {
	for {
		stop, err := r.runOnce()
		if err != nil {
			r.closeAll()
			return err
		}
		if stop {
			break
		}
	}
	return r.closeAll()
}

func (r *Reactor) closeAll() error {
	for _, ep := range r.snapshotEndpoints() {
		r.disposeTagged(ep)
	}
	r.wake.close()
	return r.poller.Close()
}

// runOnce executes one pass of the loop, returning stop=true once the
// reactor has been told to stop and every endpoint's output has drained.
func (r *Reactor) runOnce() (stop bool, err error) {
	eps := r.snapshotEndpoints()

	writeSetEmpty := true
	for _, ep := range eps {
		if ep.inWriteSet() {
			writeSetEmpty = false
			break
		}
	}
	if r.stopped.Load() && writeSetEmpty {
		return true, nil
	}

	for r.timers.Due() {
		e, ok := r.timers.Next()
		if !ok {
			break
		}
		r.dispatchTimer(e)
	}

	r.drainUserEvents()

	timeout := time.Duration(-1)
	if d, ok := r.timers.TimeToNext(); ok {
		timeout = d
	}
	// Output buffered by callbacks needs a writability event: sockets get
	// write interest, and files (never registered with the poller) make
	// the wait return at once.
	for _, ep := range r.snapshotEndpoints() {
		if ep.kind == kindListener || ep.state != StateConnected || ep.outBuf().Empty() {
			continue
		}
		if ep.kind == kindFile {
			timeout = 0
		} else if err := r.poller.SetInterest(ep.fd(), true, true); err != nil {
			r.disposeTagged(ep)
		}
	}
	batch := make([]pollEvent, r.cfg.PollEventBatch)
	n, perr := r.poller.Wait(timeout, batch)
	if perr != nil {
		// EINTR is already absorbed inside Wait; anything reaching here
		// is a genuine poller fault, which aborts the loop rather than
		// spinning on a condition that will not clear itself.
		return false, fmt.Errorf("reactor: poller wait: %w", perr)
	}

	reads, writes := r.classifyEvents(eps, batch[:n])
	for _, ep := range reads {
		r.dispatchRead(ep)
	}
	for _, ep := range writes {
		r.dispatchWrite(ep)
	}
	return false, nil
}

// inWriteSet reports whether ep belongs in the conceptual write set for
// this pass: it has buffered output, or it is mid-connect and so needs a
// writability event to detect completion. Listeners never write.
func (ep *endpoint) inWriteSet() bool {
	if ep.kind == kindListener {
		return false
	}
	if ep.state == StateConnecting {
		return true
	}
	return !ep.outBuf().Empty()
}

// classifyEvents folds poller-reported readiness for sockets together
// with the always-ready status of file endpoints into the pass's read
// and write dispatch lists. An errored fd (EPOLLERR/EPOLLHUP) is folded
// into both readable and writable, so the endpoint is dispatched and the
// failure surfaces through its next read or write rather than sitting
// silently ready-for-nothing. No new reads are dispatched once the
// reactor is stopped; writes continue so pending output can drain.
func (r *Reactor) classifyEvents(eps []*endpoint, batch []pollEvent) (reads, writes []*endpoint) {
	stopped := r.stopped.Load()

	socketReadable := make(map[*endpoint]bool, len(batch))
	socketWritable := make(map[*endpoint]bool, len(batch))
	r.mu.Lock()
	for _, ev := range batch {
		if ev.fd == r.wake.fd() {
			r.wake.drain()
			continue
		}
		ep, ok := r.byFd[ev.fd]
		if !ok {
			continue
		}
		if ev.readable || ev.errored {
			socketReadable[ep] = true
		}
		if ev.writable || ev.errored {
			socketWritable[ep] = true
		}
	}
	r.mu.Unlock()

	for _, ep := range eps {
		switch ep.kind {
		case kindFile:
			if !stopped {
				reads = append(reads, ep)
			}
			if ep.inWriteSet() {
				writes = append(writes, ep)
			}
		case kindListener:
			if !stopped && socketReadable[ep] {
				reads = append(reads, ep)
			}
		default:
			if !stopped && ep.state != StateConnecting && socketReadable[ep] {
				reads = append(reads, ep)
			}
			if ep.inWriteSet() && socketWritable[ep] {
				writes = append(writes, ep)
			}
		}
	}
	return reads, writes
}

// dispatchRead drives one endpoint's readiness-triggered read path: either
// accepting on a listener, or resuming/creating its recv_data coroutine.
func (r *Reactor) dispatchRead(ep *endpoint) {
	defer r.recoverLoopPanic("read dispatch")
	if ep.kind == kindListener {
		r.acceptOne(ep)
		return
	}
	if ep.state == StateError {
		return
	}
	if ep.coro == nil || !ep.coro.alive {
		tag := ep.tag
		ep.coro = newCoroutine(ep, callbackRecvData, func(ctx *Context) {
			r.handler.RecvData(ctx, tag)
		})
	}
	r.resumeAndHandle(ep, ep.coro)
}

// dispatchWrite drives one endpoint's writability event: finalizing a
// pending connect, or flushing buffered output.
func (r *Reactor) dispatchWrite(ep *endpoint) {
	defer r.recoverLoopPanic("write dispatch")
	if ep.state == StateConnecting {
		r.finishConnect(ep)
		return
	}
	r.flushOne(ep)
}

// acceptOne accepts a single pending connection on a listening endpoint
// and drives its ServerInit coroutine.
func (r *Reactor) acceptOne(listenerEp *endpoint) {
	conn, addr, port, err := acceptTCPNonblocking(listenerEp.listener)
	if err != nil {
		if isRetryable(err) {
			return
		}
		r.cfg.Logger.Printf("accept error on listener tag=%v: %v", listenerEp.tag, err)
		return
	}
	ep := r.newEndpoint(kindClient, conn, nil, false)
	ep.state = StateConnected
	r.register(ep)
	if err := r.poller.Add(ep.fd(), true, false); err != nil {
		r.disposeTagged(ep)
		return
	}
	listenerTag := listenerEp.tag
	r.runInitCoroutine(ep, callbackServerInit, func(ctx *Context) {
		r.handler.ServerInit(ctx, listenerTag, addr, port)
	})
}

// finishConnect checks SO_ERROR on a newly-writable Connecting endpoint,
// then invokes ClientInit on success or ConnectError (followed by
// disposal) on failure.
func (r *Reactor) finishConnect(ep *endpoint) {
	if ep.connectTimer != nil {
		r.timers.Cancel(ep.connectTimer)
		ep.connectTimer = nil
	}
	tc, ok := ep.conn.(*tcpConn)
	if !ok {
		ep.state = StateConnected
		r.runInitCoroutine(ep, callbackClientInit, func(ctx *Context) {
			r.handler.ClientInit(ctx, ep.tag)
		})
		return
	}
	if err := finalizeConnect(tc); err != nil {
		tag := ep.tag
		detail := &Error{Code: ErrCodeConnect, Tag: tag, Err: err}
		r.runDirectCallback(ep, callbackConnectError, func(ctx *Context) {
			r.handler.ConnectError(ctx, tag, detail)
		})
		r.disposeTagged(ep)
		return
	}
	ep.state = StateConnected
	if err := r.poller.SetInterest(ep.fd(), true, !ep.outBuf().Empty()); err != nil {
		r.disposeTagged(ep)
		return
	}
	r.runInitCoroutine(ep, callbackClientInit, func(ctx *Context) {
		r.handler.ClientInit(ctx, ep.tag)
	})
}

// flushOne writes as much buffered output as the handle will currently
// accept. A retryable short write leaves the endpoint registered for the
// next writability event; a hard error is surfaced via the Error callback
// and the endpoint is disposed.
func (r *Reactor) flushOne(ep *endpoint) {
	retry, err := ep.outBuf().Flush(ep.conn)
	if err != nil {
		tag := ep.tag
		detail := &Error{Code: ErrCodeWrite, Tag: tag, Err: err}
		r.runDirectCallback(ep, callbackError, func(ctx *Context) {
			r.handler.Error(ctx, tag, detail)
		})
		r.disposeTagged(ep)
		return
	}
	if ep.kind == kindFile {
		return
	}
	want := retry || !ep.outBuf().Empty()
	if err := r.poller.SetInterest(ep.fd(), true, want); err != nil {
		r.disposeTagged(ep)
	}
}

// dispatchTimer fires one due timer entry: a user timer's TimerExpired
// callback, or an internal connect-timeout's synthesized error and
// disposal.
func (r *Reactor) dispatchTimer(e *timerqueue.Entry) {
	defer r.recoverLoopPanic("timer dispatch")
	if e.Kind == timerqueue.KindConnectTimeout {
		ep, ok := e.Meta.(*endpoint)
		if !ok || ep.state != StateConnecting {
			return
		}
		ep.connectTimer = nil
		tag := ep.tag
		detail := &Error{Code: ErrCodeConnectTimeout, Tag: tag, Err: ErrConnectTimeout}
		r.runDirectCallback(ep, callbackError, func(ctx *Context) {
			r.handler.Error(ctx, tag, detail)
		})
		r.disposeTagged(ep)
		return
	}
	tag := e.Meta
	r.runDirectCallback(nil, callbackTimerExpired, func(ctx *Context) {
		r.handler.TimerExpired(ctx, tag)
	})
}

// recoverLoopPanic guards one dispatch step so a panicking callback body
// cannot take down the whole reactor; it is logged at the loop boundary
// and the pass continues, per §7.
func (r *Reactor) recoverLoopPanic(step string) {
	if rec := recover(); rec != nil {
		r.cfg.Logger.Printf("recovered panic during %s: %v", step, rec)
	}
}

// resumeAndHandle resumes a coroutine and processes its result. Entering
// this while another call is already on the stack (e.g. a handler calling
// Connect and completing synchronously) is ordinary same-goroutine
// recursion, not the concurrent execution §8's invariant rules out — that
// invariant is about two callbacks running on two different goroutines at
// once, which this reactor's single dispatch loop never produces.
func (r *Reactor) resumeAndHandle(ep *endpoint, coro *coroutine) {
	atomic.AddInt32(&r.activeCalls, 1)
	defer atomic.AddInt32(&r.activeCalls, -1)
	res := coro.Resume()
	switch res.state {
	case coroSuspended:
	case coroDone:
	case coroHardError:
		ep.state = StateError
		tag := ep.tag
		err := res.err
		r.cfg.Logger.Printf("endpoint error tag=%v: %v", tag, err)
		detail := &Error{Code: ErrCodeRead, Tag: tag, Err: err}
		r.runDirectCallback(ep, callbackError, func(ctx *Context) {
			r.handler.Error(ctx, tag, detail)
		})
		r.disposeTagged(ep)
	}
}

// runDirectCallback invokes fn with a fresh Context for a callback that
// runs outside any endpoint coroutine (Error, ConnectError, TimerExpired,
// UserEvent), recovering any panic at this boundary rather than letting
// it escape the loop.
func (r *Reactor) runDirectCallback(ep *endpoint, kind callbackKind, fn func(ctx *Context)) {
	atomic.AddInt32(&r.activeCalls, 1)
	defer atomic.AddInt32(&r.activeCalls, -1)
	defer r.recoverLoopPanic("direct callback")
	ctx := &Context{r: r, ep: ep, kind: kind}
	fn(ctx)
}

// drainUserEvents delivers every event queued since the last pass, in
// FIFO order, before clearing the queue.
func (r *Reactor) drainUserEvents() {
	r.evMu.Lock()
	n := r.userEvents.Length()
	r.evMu.Unlock()
	for i := 0; i < n; i++ {
		r.evMu.Lock()
		event := r.userEvents.Remove()
		r.evMu.Unlock()

		r.runDirectCallback(nil, callbackUserEvent, func(ctx *Context) {
			r.handler.UserEvent(ctx, event)
		})
	}
}
