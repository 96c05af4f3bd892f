package reactor_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/evreactor/reactor"
)

func TestNewRateEstimatorUsesConfiguredWindow(t *testing.T) {
	mock := clock.NewMock()
	cfg := reactor.DefaultConfig()
	cfg.RateWindow = time.Minute
	cfg.RateCap = 5
	cfg.Clock = mock

	r, err := reactor.NewReactor(reactor.BaseHandler{}, cfg)
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	// No endpoints are registered, so Stop-then-Start drains and closes
	// the reactor's poller/wakeup pipe on the first pass.
	r.Stop()
	defer func() { _ = r.Start() }()

	est := r.NewRateEstimator()
	est.Update(10)
	mock.Add(time.Second)
	est.Update(10)
	if v := est.Value(); v != 10 {
		t.Fatalf("got %v, want 10", v)
	}
}
