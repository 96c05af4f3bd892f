// Author: momentics <momentics@gmail.com>
//
// Config holds all tunables for a Reactor instance.

package reactor

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/benbjohnson/clock"
)

// Config holds all configurable parameters for a Reactor.
type Config struct {
	// ListenBacklog is the backlog passed to listen(2) for listening
	// sockets created via Listen. Default 10.
	ListenBacklog int

	// PollEventBatch bounds how many readiness events are drained from
	// the multiplexer per Wait call.
	PollEventBatch int

	// RateWindow and RateCap are the defaults handed to rate estimators
	// constructed by this reactor's consumers.
	RateWindow time.Duration
	RateCap    int

	// Logger receives loop-boundary error logs (recovered panics, accept
	// failures, endpoint read errors). Disposal logs nothing.
	Logger *log.Logger

	// Clock abstracts time for timers and rate estimation; nil uses the
	// real wall clock. Tests substitute a clock.Mock for determinism.
	Clock clock.Clock
}

// DefaultConfig returns a baseline Reactor configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenBacklog:  10,
		PollEventBatch: 128,
		RateWindow:     30 * time.Second,
		RateCap:        100,
		Logger:         log.New(os.Stderr, "reactor: ", log.LstdFlags),
		Clock:          clock.New(),
	}
}

func (c *Config) normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cp := *c
	if cp.ListenBacklog <= 0 {
		cp.ListenBacklog = 10
	}
	if cp.PollEventBatch <= 0 {
		cp.PollEventBatch = 128
	}
	if cp.RateWindow <= 0 {
		cp.RateWindow = 30 * time.Second
	}
	if cp.RateCap <= 0 {
		cp.RateCap = 100
	}
	if cp.Logger == nil {
		cp.Logger = log.New(os.Stderr, "reactor: ", log.LstdFlags)
	}
	if cp.Clock == nil {
		cp.Clock = clock.New()
	}
	return &cp
}

// silentLogger discards all output; used in tests that want no noise.
func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
