// Package outbuf implements the reactor's write-side output buffering:
// a non-seekable contiguous byte queue and a seekable ordered chunk list
// that preserves each write's intended file offset.
//
// Author: momentics <momentics@gmail.com>
package outbuf

import (
	"errors"
	"sync"
)

// ErrWouldBlock is returned by a RawWriter when the underlying handle is
// not currently writable; Flush treats it as a retry condition rather
// than a hard error.
var ErrWouldBlock = errors.New("outbuf: write would block")

// RawWriter is the non-blocking write surface a Buffer drains into.
type RawWriter interface {
	Write(p []byte) (int, error)
}

// RawSeekWriter additionally supports seeking, required by the seekable
// buffer variant before draining each chunk.
type RawSeekWriter interface {
	RawWriter
	Seek(offset int64, whence int) (int64, error)
}

// Buffer is the shared append/flush/empty surface both variants expose.
type Buffer interface {
	// Flush drains as much buffered data as possible without blocking.
	// retry is true when draining stopped on ErrWouldBlock and more
	// remains; err is any non-retryable error encountered.
	Flush(w RawWriter) (retry bool, err error)
	Empty() bool
}

// NonSeekable is a contiguous byte queue drained front-to-back.
type NonSeekable struct {
	mu  sync.Mutex
	buf []byte
}

// NewNonSeekable constructs an empty non-seekable output buffer.
func NewNonSeekable() *NonSeekable {
	return &NonSeekable{}
}

// Append adds bytes to the tail of the buffer. Never drops bytes.
func (b *NonSeekable) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
}

// Empty reports whether the buffer currently holds no bytes.
func (b *NonSeekable) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) == 0
}

// Flush writes the front of the buffer until the writer reports
// ErrWouldBlock or the buffer empties.
func (b *NonSeekable) Flush(w RawWriter) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) > 0 {
		n, err := w.Write(b.buf)
		if n > 0 {
			b.buf = b.buf[n:]
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

// chunk is one pending (offset, bytes) write against a seekable handle.
type chunk struct {
	offset int64
	data   []byte
}

// Seekable is an ordered list of offset-tagged chunks. Flush seeks to
// each chunk's stored offset before draining it, so writes interleaved
// with seeks land at their intended positions even when flush happens
// later.
type Seekable struct {
	mu     sync.Mutex
	chunks []chunk
}

// NewSeekable constructs an empty seekable output buffer.
func NewSeekable() *Seekable {
	return &Seekable{}
}

// Append records p to be written at offset once flushed.
func (b *Seekable) Append(offset int64, p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, chunk{offset: offset, data: cp})
}

// Empty reports whether any chunks remain pending.
func (b *Seekable) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks) == 0
}

// Flush processes chunks in insertion order: seek to the chunk's offset,
// then drain it byte-by-bytes-written. A chunk is only removed once it
// is fully written; a would-block mid-chunk leaves its remainder in
// place for the next Flush.
func (b *Seekable) Flush(w RawWriter) (bool, error) {
	sw, ok := w.(RawSeekWriter)
	if !ok {
		return false, errors.New("outbuf: seekable flush requires a seekable writer")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.chunks) > 0 {
		c := &b.chunks[0]
		if _, err := sw.Seek(c.offset, 0); err != nil {
			return false, err
		}
		for len(c.data) > 0 {
			n, err := sw.Write(c.data)
			if n > 0 {
				c.offset += int64(n)
				c.data = c.data[n:]
			}
			if err != nil {
				if errors.Is(err, ErrWouldBlock) {
					return true, nil
				}
				return false, err
			}
		}
		b.chunks = b.chunks[1:]
	}
	return false, nil
}
