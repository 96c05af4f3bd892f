package outbuf_test

import (
	"errors"
	"testing"

	"github.com/momentics/evreactor/internal/outbuf"
)

// fakeWriter is a RawWriter/RawSeekWriter over an in-memory byte slice,
// used to drive Flush without a real socket or file.
type fakeWriter struct {
	buf     []byte
	cursor  int64
	blockAt int // Write returns ErrWouldBlock after this many total bytes; 0 disables
	written int
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.blockAt > 0 && w.written >= w.blockAt {
		return 0, outbuf.ErrWouldBlock
	}
	n := len(p)
	if w.blockAt > 0 && w.written+n > w.blockAt {
		n = w.blockAt - w.written
	}
	end := w.cursor + int64(n)
	if end > int64(len(w.buf)) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[w.cursor:end], p[:n])
	w.cursor = end
	w.written += n
	if n < len(p) {
		return n, outbuf.ErrWouldBlock
	}
	return n, nil
}

func (w *fakeWriter) Seek(offset int64, whence int) (int64, error) {
	w.cursor = offset
	return w.cursor, nil
}

func TestNonSeekableAppendNeverDrops(t *testing.T) {
	b := outbuf.NewNonSeekable()
	b.Append([]byte("hello, "))
	b.Append([]byte("world"))

	w := &fakeWriter{}
	retry, err := b.Flush(w)
	if err != nil || retry {
		t.Fatalf("unexpected flush result: retry=%v err=%v", retry, err)
	}
	if !b.Empty() {
		t.Fatal("buffer should be empty after full flush")
	}
	if got := string(w.buf); got != "hello, world" {
		t.Fatalf("got %q", got)
	}
}

func TestNonSeekableFlushRetriesOnWouldBlock(t *testing.T) {
	b := outbuf.NewNonSeekable()
	b.Append([]byte("0123456789"))

	w := &fakeWriter{blockAt: 4}
	retry, err := b.Flush(w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retry {
		t.Fatal("expected retry=true on partial write")
	}
	if b.Empty() {
		t.Fatal("buffer should still hold unwritten bytes")
	}

	w.blockAt = 0
	retry, err = b.Flush(w)
	if err != nil || retry {
		t.Fatalf("unexpected second flush result: retry=%v err=%v", retry, err)
	}
	if !b.Empty() {
		t.Fatal("buffer should be empty after draining the remainder")
	}
	if got := string(w.buf); got != "0123456789" {
		t.Fatalf("got %q", got)
	}
}

func TestNonSeekableFlushHardError(t *testing.T) {
	b := outbuf.NewNonSeekable()
	b.Append([]byte("x"))

	sentinel := errors.New("disk full")
	w := &erroringWriter{err: sentinel}
	_, err := b.Flush(w)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

type erroringWriter struct{ err error }

func (w *erroringWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestSeekableOverlappingWritesLandInOrder(t *testing.T) {
	// Mirrors writing "AAA" at offset 0, seeking back to 0, then writing
	// "B": the later write overlays the first byte of the earlier one.
	b := outbuf.NewSeekable()
	b.Append(0, []byte("AAA"))
	b.Append(0, []byte("B"))

	w := &fakeWriter{}
	retry, err := b.Flush(w)
	if err != nil || retry {
		t.Fatalf("unexpected flush result: retry=%v err=%v", retry, err)
	}
	if !b.Empty() {
		t.Fatal("expected all chunks drained")
	}
	if got := string(w.buf); got != "BAA" {
		t.Fatalf("got %q, want %q", got, "BAA")
	}
}

func TestSeekableRequiresSeekableWriter(t *testing.T) {
	b := outbuf.NewSeekable()
	b.Append(0, []byte("x"))

	_, err := b.Flush(&erroringWriter{err: errors.New("unused")})
	if err == nil {
		t.Fatal("expected an error when flushing to a non-seekable writer")
	}
}

func TestSeekableEmptyAfterFlush(t *testing.T) {
	b := outbuf.NewSeekable()
	if !b.Empty() {
		t.Fatal("fresh buffer should be empty")
	}
	b.Append(10, []byte("data"))
	if b.Empty() {
		t.Fatal("buffer with a pending chunk should not be empty")
	}
	w := &fakeWriter{}
	if _, err := b.Flush(w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Empty() {
		t.Fatal("buffer should be empty after flush")
	}
}
