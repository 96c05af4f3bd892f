// Package timerqueue implements a min-heap timer manager with lazy
// cancellation, built on the container/heap priority-queue pattern.
//
// Author: momentics <momentics@gmail.com>
package timerqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Kind distinguishes internal timers (synthesized by the reactor) from
// user-scheduled ones.
type Kind int

const (
	// KindUser is a timer scheduled by handler code via schedule_timer.
	KindUser Kind = iota
	// KindConnectTimeout bounds an in-flight connect attempt.
	KindConnectTimeout
)

// Entry is one scheduled timer. Duration, Recurring and Meta are supplied
// by the caller; Expiry and cancelled are owned by the Queue.
type Entry struct {
	Duration  time.Duration
	Recurring bool
	Kind      Kind
	Meta      any

	expiry    time.Time
	cancelled bool
	index     int // heap index, maintained by container/heap
}

// Tag returns the caller-supplied metadata for this entry.
func (e *Entry) Tag() any { return e.Meta }

// entryHeap implements heap.Interface ordered by expiry, earliest first.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].expiry.Before(h[j].expiry) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a thread-safe-by-caller-convention (reactor is single-threaded)
// min-heap of timer entries with lazy cancellation.
type Queue struct {
	mu   sync.Mutex
	heap entryHeap
	clk  clock.Clock
}

// New creates an empty timer queue. A nil clk defaults to the real clock.
func New(clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	return &Queue{clk: clk}
}

// Add constructs and inserts a new entry. If immediate is true, expiry is
// now, so the entry becomes due on the next drain pass.
func (q *Queue) Add(duration time.Duration, kind Kind, meta any, recurring, immediate bool) *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := &Entry{
		Duration:  duration,
		Recurring: recurring,
		Kind:      kind,
		Meta:      meta,
	}
	if immediate {
		e.expiry = q.clk.Now()
	} else {
		e.expiry = q.clk.Now().Add(duration)
	}
	heap.Push(&q.heap, e)
	return e
}

// Cancel marks an entry cancelled; it is dropped lazily once it reaches
// the top of the heap.
func (q *Queue) Cancel(e *Entry) {
	if e == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e.cancelled = true
}

// Len reports the number of live (including lazily-cancelled) entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Peek discards cancelled entries at the top and returns the earliest
// live entry without removing it, along with whether one exists.
func (q *Queue) Peek() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropCancelledLocked()
	if q.heap.Len() == 0 {
		return nil, false
	}
	return q.heap[0], true
}

// Next discards cancelled entries at the top, pops the earliest live
// entry, re-adds it with a fresh expiry if it was recurring, and returns
// the popped entry.
func (q *Queue) Next() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropCancelledLocked()
	if q.heap.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.heap).(*Entry)
	if e.Recurring && !e.cancelled {
		next := &Entry{
			Duration:  e.Duration,
			Recurring: e.Recurring,
			Kind:      e.Kind,
			Meta:      e.Meta,
			expiry:    q.clk.Now().Add(e.Duration),
		}
		heap.Push(&q.heap, next)
	}
	return e, true
}

// dropCancelledLocked removes cancelled entries sitting at the heap top.
// Must be called with mu held.
func (q *Queue) dropCancelledLocked() {
	for q.heap.Len() > 0 && q.heap[0].cancelled {
		heap.Pop(&q.heap)
	}
}

// TimeToNext returns the duration until the earliest live entry expires,
// clamped to zero if already due, and false if the queue is empty.
func (q *Queue) TimeToNext() (time.Duration, bool) {
	e, ok := q.Peek()
	if !ok {
		return 0, false
	}
	d := e.expiry.Sub(q.clk.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// Due reports whether the earliest live entry's expiry has passed.
func (q *Queue) Due() bool {
	e, ok := q.Peek()
	if !ok {
		return false
	}
	return !e.expiry.After(q.clk.Now())
}
