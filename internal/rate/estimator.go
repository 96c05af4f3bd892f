// Package rate provides a windowed rate estimator over a stream of
// timestamped samples.
//
// Author: momentics <momentics@gmail.com>
package rate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// sample is one (value, time) observation.
type sample struct {
	value float64
	at    time.Time
}

// Estimator tracks a windowed, capped series of samples and reports the
// mean sample value across the trailing window. The elapsed time between
// samples is used only for aging; it is not a divisor.
type Estimator struct {
	mu      sync.Mutex
	clk     clock.Clock
	window  time.Duration
	cap     int
	samples []sample
}

// New creates an Estimator with window duration and a hard cap on sample
// count. A nil clk defaults to the real wall clock.
func New(window time.Duration, cap int, clk clock.Clock) *Estimator {
	if clk == nil {
		clk = clock.New()
	}
	return &Estimator{
		clk:    clk,
		window: window,
		cap:    cap,
	}
}

// Update appends a new sample at the current time. Samples beyond the cap
// are silently dropped.
func (e *Estimator) Update(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.samples) >= e.cap {
		return
	}
	e.samples = append(e.samples, sample{value: v, at: e.clk.Now()})
}

// Value ages out samples older than the window and returns the mean of
// what remains. Returns 0 if fewer than two samples survive aging.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ageLocked()
	if len(e.samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range e.samples {
		sum += s.value
	}
	return sum / float64(len(e.samples))
}

// Reset empties the sample list.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = nil
}

// ageLocked drops samples older than window relative to the clock's
// current reading. Must be called with mu held.
func (e *Estimator) ageLocked() {
	if len(e.samples) == 0 {
		return
	}
	cutoff := e.clk.Now().Add(-e.window)
	i := 0
	for i < len(e.samples) && e.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.samples = e.samples[i:]
	}
}
