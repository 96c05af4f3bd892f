// Author: momentics <momentics@gmail.com>
//
// Reactor is the single-threaded event reactor described by spec.md: it
// multiplexes TCP client/listener sockets and local files behind the
// Handler callback surface, running each endpoint's read coroutine
// cooperatively so handler code can read as if synchronously while the
// reactor itself never blocks on a single endpoint.

package reactor

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/evreactor/internal/outbuf"
	"github.com/momentics/evreactor/internal/timerqueue"
)

// Reactor drives registered endpoints through readiness-driven dispatch.
type Reactor struct {
	cfg     *Config
	handler Handler
	poller  poller
	wake    *wakeupPipe
	timers  *timerqueue.Queue

	mu        sync.Mutex
	endpoints map[*endpoint]struct{}
	byTag     map[any]*endpoint
	byFd      map[uintptr]*endpoint

	evMu       sync.Mutex
	userEvents *queue.Queue

	stopped     atomic.Bool
	activeCalls int32 // depth counter for handler callback frames on the dispatch goroutine

	stopOnce sync.Once
	done     chan struct{}
}

// NewReactor constructs a Reactor with the given handler and config. A
// nil config uses DefaultConfig.
func NewReactor(handler Handler, cfg *Config) (*Reactor, error) {
	cfg = cfg.normalize()
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: create poller: %w", err)
	}
	wp, err := newWakeupPipe()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("reactor: create wakeup pipe: %w", err)
	}
	r := &Reactor{
		cfg:        cfg,
		handler:    handler,
		poller:     p,
		wake:       wp,
		timers:     timerqueue.New(cfg.Clock),
		endpoints:  make(map[*endpoint]struct{}),
		byTag:      make(map[any]*endpoint),
		byFd:       make(map[uintptr]*endpoint),
		userEvents: queue.New(),
		done:       make(chan struct{}),
	}
	if wp.fd() != 0 {
		_ = r.poller.Add(wp.fd(), true, false)
	}
	return r, nil
}

// ---- registration helpers -------------------------------------------------

func (r *Reactor) newEndpoint(kind endpointKind, conn rawConn, tag any, seekable bool) *endpoint {
	ep := &endpoint{
		reactor:         r,
		kind:            kind,
		conn:            conn,
		tag:             tag,
		seekable:        seekable,
		useErrorHandler: true,
	}
	if seekable {
		ep.seekOut = outbuf.NewSeekable()
	} else {
		ep.nonSeekOut = outbuf.NewNonSeekable()
	}
	return ep
}

func (r *Reactor) register(ep *endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[ep] = struct{}{}
	if ep.tag != nil {
		r.byTag[ep.tag] = ep
	}
	if ep.kind != kindFile {
		r.byFd[ep.fd()] = ep
	}
}

func (r *Reactor) retag(ep *endpoint, tag any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep.tag != nil {
		delete(r.byTag, ep.tag)
	}
	ep.tag = tag
	if tag != nil {
		r.byTag[tag] = ep
	}
}

func (r *Reactor) findByTag(tag any) (*endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.byTag[tag]
	return ep, ok
}

func (r *Reactor) unregister(ep *endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, ep)
	if ep.tag != nil && r.byTag[ep.tag] == ep {
		delete(r.byTag, ep.tag)
	}
	if ep.kind != kindFile {
		delete(r.byFd, ep.fd())
	}
}

func (r *Reactor) snapshotEndpoints() []*endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*endpoint, 0, len(r.endpoints))
	for ep := range r.endpoints {
		out = append(out, ep)
	}
	return out
}

// ---- public operations (spec.md §4.1) --------------------------------------

// Connect initiates a non-blocking TCP connect. If the OS completes it
// immediately, ClientInit is invoked synchronously; otherwise the
// endpoint is Connecting and, if timeout > 0, a one-shot internal timer
// bounds it.
func (r *Reactor) Connect(addr string, port int, tag any, timeout time.Duration) error {
	conn, completed, err := dialTCPNonblocking(addr, port)
	if err != nil {
		return err
	}
	ep := r.newEndpoint(kindClient, conn, tag, false)
	if completed {
		ep.state = StateConnected
		r.register(ep)
		if err := r.poller.Add(ep.fd(), true, false); err != nil {
			r.unregister(ep)
			ep.close()
			return err
		}
		r.runInitCoroutine(ep, callbackClientInit, func(ctx *Context) {
			r.handler.ClientInit(ctx, tag)
		})
		return nil
	}
	ep.state = StateConnecting
	r.register(ep)
	if timeout > 0 {
		ep.connectTimer = r.timers.Add(timeout, timerqueue.KindConnectTimeout, ep, false, false)
	}
	if err := r.poller.Add(ep.fd(), false, true); err != nil {
		r.unregister(ep)
		ep.close()
		return err
	}
	return nil
}

// Listen creates a TCP listening socket with SO_REUSEADDR and registers
// it in the Listening state.
func (r *Reactor) Listen(addr string, port int, tag any) error {
	l, err := listenTCPNonblocking(addr, port, r.cfg.ListenBacklog)
	if err != nil {
		return err
	}
	ep := &endpoint{
		reactor:  r,
		kind:     kindListener,
		listener: l,
		tag:      tag,
		state:    StateListening,
	}
	r.register(ep)
	if err := r.poller.Add(ep.fd(), true, false); err != nil {
		r.unregister(ep)
		ep.close()
		return err
	}
	return nil
}

// Open opens a local file; the endpoint is seekable and starts Connected.
func (r *Reactor) Open(path, mode string, tag any, useErrorHandler bool) error {
	flag, perm := parseFileMode(mode)
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return err
	}
	ep := r.newEndpoint(kindFile, newFileConn(f), tag, true)
	ep.state = StateConnected
	ep.useErrorHandler = useErrorHandler
	r.register(ep)
	return nil
}

// ScheduleTimer returns a timer handle. Immediate timers fire on the next
// loop pass.
func (r *Reactor) ScheduleTimer(d time.Duration, tag any, recurring, immediate bool) *timerqueue.Entry {
	return r.scheduleTimer(d, tag, recurring, immediate)
}

func (r *Reactor) scheduleTimer(d time.Duration, tag any, recurring, immediate bool) *timerqueue.Entry {
	return r.timers.Add(d, timerqueue.KindUser, tag, recurring, immediate)
}

// CancelTimer marks a timer entry cancelled; it is dropped lazily.
func (r *Reactor) CancelTimer(h *timerqueue.Entry) {
	r.cancelTimer(h)
}

func (r *Reactor) cancelTimer(h *timerqueue.Entry) {
	r.timers.Cancel(h)
}

// AddUserEvent enqueues an event for delivery on the next loop pass.
func (r *Reactor) AddUserEvent(event any) {
	r.addUserEvent(event)
}

func (r *Reactor) addUserEvent(event any) {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	r.userEvents.Add(event)
}

// Close disposes the given endpoint.
func (r *Reactor) Close(h IOHandle) error {
	return r.disposeTagged(h.ep)
}

// Stop sets the stopped flag and wakes the poller; the loop exits once
// all pending output has drained.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		r.wake.signal()
	})
}

// disposeTagged flushes best-effort, closes the handle (swallowing close
// errors), and deregisters ep. The handle is always closed regardless of
// flush outcome.
func (r *Reactor) disposeTagged(ep *endpoint) error {
	if ep == nil {
		return nil
	}
	ep.flushBestEffort()
	if ep.kind != kindFile {
		_ = r.poller.Remove(ep.fd())
	}
	ep.close()
	r.unregister(ep)
	return nil
}

// runInitCoroutine builds and drives a fresh coroutine for an endpoint's
// first callback (ClientInit or ServerInit), applying the same dispatch
// rules as a readiness-triggered resume.
func (r *Reactor) runInitCoroutine(ep *endpoint, kind callbackKind, body func(ctx *Context)) {
	ep.coro = newCoroutine(ep, kind, body)
	r.resumeAndHandle(ep, ep.coro)
}
