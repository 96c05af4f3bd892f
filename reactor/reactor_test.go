//go:build linux
// +build linux

package reactor_test

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/evreactor/reactor"
)

func newTestReactor(t *testing.T, h reactor.Handler) *reactor.Reactor {
	t.Helper()
	cfg := reactor.DefaultConfig()
	r, err := reactor.NewReactor(h, cfg)
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	return r
}

func runAndStop(t *testing.T, r *reactor.Reactor, done <-chan struct{}) {
	t.Helper()
	loopErr := make(chan error, 1)
	go func() { loopErr <- r.Start() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("test scenario did not complete in time")
	}
	r.Stop()

	select {
	case err := <-loopErr:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not shut down after Stop")
	}
}

type echoHandler struct {
	reactor.BaseHandler
	got chan string
}

func (h *echoHandler) RecvData(ctx *reactor.Context, tag any) {
	b, err := ctx.Read(5)
	if err != nil {
		return
	}
	_ = ctx.Write(b)
	h.got <- string(b)
}

func TestEchoServerRoundTrip(t *testing.T) {
	h := &echoHandler{got: make(chan string, 1)}
	r := newTestReactor(t, h)

	if err := r.Listen("127.0.0.1", 18471, "listener"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := net.Dial("tcp", "127.0.0.1:18471")
		if err != nil {
			t.Errorf("dial: %v", err)
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("hello")); err != nil {
			t.Errorf("write: %v", err)
			return
		}
		reply := make([]byte, 5)
		if _, err := conn.Read(reply); err != nil {
			t.Errorf("read: %v", err)
			return
		}
		if string(reply) != "hello" {
			t.Errorf("got %q, want %q", reply, "hello")
		}
		<-h.got
	}()

	runAndStop(t, r, done)
}

type suspendingReadHandler struct {
	reactor.BaseHandler
	result chan string
}

func (h *suspendingReadHandler) RecvData(ctx *reactor.Context, tag any) {
	b, err := ctx.Read(10)
	if err != nil {
		return
	}
	h.result <- string(b)
}

func TestReadAcrossSuspension(t *testing.T) {
	h := &suspendingReadHandler{result: make(chan string, 1)}
	r := newTestReactor(t, h)

	if err := r.Listen("127.0.0.1", 18475, "listener"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := net.Dial("tcp", "127.0.0.1:18475")
		if err != nil {
			t.Errorf("dial: %v", err)
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("01234")); err != nil {
			t.Errorf("write first half: %v", err)
			return
		}
		time.Sleep(50 * time.Millisecond)
		if _, err := conn.Write([]byte("56789")); err != nil {
			t.Errorf("write second half: %v", err)
			return
		}
		if got := <-h.result; got != "0123456789" {
			t.Errorf("got %q, want %q", got, "0123456789")
		}
	}()

	runAndStop(t, r, done)
}

type clientInitHandler struct {
	reactor.BaseHandler
	initialized chan any
}

func (h *clientInitHandler) ClientInit(ctx *reactor.Context, tag any) {
	h.initialized <- tag
}

func TestConnectInvokesClientInit(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:18472")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-time.After(2 * time.Second)
	}()

	h := &clientInitHandler{initialized: make(chan any, 1)}
	r := newTestReactor(t, h)

	if err := r.Connect("127.0.0.1", 18472, "client-1", time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		tag := <-h.initialized
		if tag != "client-1" {
			t.Errorf("got tag %v, want client-1", tag)
		}
	}()

	runAndStop(t, r, done)
}

type connectTimeoutHandler struct {
	reactor.BaseHandler
	errored chan error
}

func (h *connectTimeoutHandler) Error(ctx *reactor.Context, tag any, detail error) {
	h.errored <- detail
}

func (h *connectTimeoutHandler) ConnectError(ctx *reactor.Context, tag any, detail error) {
	h.errored <- detail
}

func TestConnectTimeoutSurfacesError(t *testing.T) {
	h := &connectTimeoutHandler{errored: make(chan error, 1)}
	r := newTestReactor(t, h)

	// 10.255.255.1 is inside a reserved, non-routable test block; SYN
	// packets there are black-holed rather than rejected, so the socket
	// stays Connecting until the internal timer fires.
	if err := r.Connect("10.255.255.1", 81, "slow", 150*time.Millisecond); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := <-h.errored; !errors.Is(err, reactor.ErrConnectTimeout) {
			t.Errorf("got %v, want ErrConnectTimeout", err)
		}
	}()

	runAndStop(t, r, done)
}

type timerHandler struct {
	reactor.BaseHandler
	fired chan any
}

func (h *timerHandler) TimerExpired(ctx *reactor.Context, tag any) {
	h.fired <- tag
}

func TestRecurringTimerFiresRepeatedly(t *testing.T) {
	h := &timerHandler{fired: make(chan any, 8)}
	r := newTestReactor(t, h)

	r.ScheduleTimer(20*time.Millisecond, "tick", true, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			<-h.fired
		}
	}()

	runAndStop(t, r, done)
}

func TestCancelledTimerNeverFires(t *testing.T) {
	h := &timerHandler{fired: make(chan any, 8)}
	r := newTestReactor(t, h)

	entry := r.ScheduleTimer(20*time.Millisecond, "should-not-fire", false, false)
	r.CancelTimer(entry)
	other := r.ScheduleTimer(60*time.Millisecond, "control", false, false)
	_ = other

	done := make(chan struct{})
	go func() {
		defer close(done)
		tag := <-h.fired
		if tag != "control" {
			t.Errorf("cancelled timer fired: got %v", tag)
		}
	}()

	runAndStop(t, r, done)
}

type fileWriteHandler struct {
	reactor.BaseHandler
	fileTag string
	wrote   chan struct{}
}

func (h *fileWriteHandler) TimerExpired(ctx *reactor.Context, tag any) {
	io, ok := ctx.FindIOByTag(h.fileTag)
	if !ok {
		return
	}
	_ = io.Write([]byte("AAA"))
	_, _ = io.Seek(0, 0)
	_ = io.Write([]byte("B"))
	close(h.wrote)
}

type abruptCloseHandler struct {
	reactor.BaseHandler
	errored chan error
}

func (h *abruptCloseHandler) RecvData(ctx *reactor.Context, tag any) {
	_, _ = ctx.Read(4)
}

func (h *abruptCloseHandler) Error(ctx *reactor.Context, tag any, detail error) {
	h.errored <- ctx.CurrentIO().LastReadError()
}

func TestPeerCloseSurfacesLastReadError(t *testing.T) {
	h := &abruptCloseHandler{errored: make(chan error, 1)}
	r := newTestReactor(t, h)

	if err := r.Listen("127.0.0.1", 18473, "listener"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := net.Dial("tcp", "127.0.0.1:18473")
		if err != nil {
			t.Errorf("dial: %v", err)
			return
		}
		conn.Close()

		if err := <-h.errored; !errors.Is(err, io.EOF) {
			t.Errorf("got %v, want io.EOF", err)
		}
	}()

	runAndStop(t, r, done)
}

type contextForwardingHandler struct {
	reactor.BaseHandler
	path  string
	ready chan struct{}
}

func (h *contextForwardingHandler) ClientInit(ctx *reactor.Context, tag any) {
	if err := ctx.Open(h.path, "w", "forwarded-file", true); err != nil {
		return
	}
	io, ok := ctx.FindIOByTag("forwarded-file")
	if !ok {
		return
	}
	_ = io.Write([]byte("opened from a callback"))
	close(h.ready)
}

func TestContextForwardsOpenFromCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwarded.txt")

	l, err := net.Listen("tcp", "127.0.0.1:18474")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-time.After(2 * time.Second)
	}()

	h := &contextForwardingHandler{path: path, ready: make(chan struct{})}
	r := newTestReactor(t, h)

	if err := r.Connect("127.0.0.1", 18474, "client", time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-h.ready
		time.Sleep(50 * time.Millisecond)
	}()

	runAndStop(t, r, done)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "opened from a callback" {
		t.Fatalf("got %q", data)
	}
}

func TestSeekableFileWriteOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.txt")

	h := &fileWriteHandler{fileTag: "the-file", wrote: make(chan struct{})}
	r := newTestReactor(t, h)

	if err := r.Open(path, "w+", h.fileTag, true); err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.ScheduleTimer(10*time.Millisecond, "go", false, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-h.wrote
		// Give the loop a couple of passes to flush the buffered writes
		// before the reactor is stopped.
		time.Sleep(50 * time.Millisecond)
	}()

	runAndStop(t, r, done)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "BAA" {
		t.Fatalf("got %q, want %q", data, "BAA")
	}
}
