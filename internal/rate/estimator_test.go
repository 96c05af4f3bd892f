package rate_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/evreactor/internal/rate"
)

func TestEstimatorValueOverWindow(t *testing.T) {
	mock := clock.NewMock()
	e := rate.New(10*time.Second, 100, mock)

	e.Update(1)
	mock.Add(1 * time.Second)
	e.Update(1)
	mock.Add(1 * time.Second)
	e.Update(1)

	v := e.Value()
	if v <= 0 {
		t.Fatalf("expected positive rate, got %v", v)
	}
}

func TestEstimatorMatchesAcceptanceExample(t *testing.T) {
	mock := clock.NewMock()
	e := rate.New(time.Second, 100, mock)

	e.Update(10)
	mock.Add(time.Second)
	e.Update(10)

	if v := e.Value(); v != 10 {
		t.Fatalf("got %v, want 10", v)
	}

	e.Reset()
	e.Update(10)
	if v := e.Value(); v != 0 {
		t.Fatalf("got %v, want 0 with a single sample", v)
	}
}

func TestEstimatorAgesOutSamples(t *testing.T) {
	mock := clock.NewMock()
	e := rate.New(1*time.Second, 100, mock)

	e.Update(5)
	mock.Add(5 * time.Second)
	e.Update(5)

	// The first sample fell outside the trailing window; with only one
	// live sample left there are too few samples to average.
	if v := e.Value(); v != 0 {
		t.Fatalf("expected 0 after aging out stale samples, got %v", v)
	}
}

func TestEstimatorRespectsCap(t *testing.T) {
	mock := clock.NewMock()
	e := rate.New(time.Minute, 3, mock)

	for i := 0; i < 10; i++ {
		e.Update(1)
		mock.Add(time.Millisecond)
	}

	// Further samples beyond cap are dropped silently rather than
	// panicking or growing unbounded; Value must still be computable.
	if v := e.Value(); v < 0 {
		t.Fatalf("unexpected negative rate: %v", v)
	}
}

func TestEstimatorReset(t *testing.T) {
	mock := clock.NewMock()
	e := rate.New(time.Minute, 100, mock)

	e.Update(1)
	mock.Add(time.Second)
	e.Update(1)
	if e.Value() == 0 {
		t.Fatal("expected nonzero rate before reset")
	}

	e.Reset()
	if v := e.Value(); v != 0 {
		t.Fatalf("expected 0 after reset, got %v", v)
	}
}
