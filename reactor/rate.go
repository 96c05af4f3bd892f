// Author: momentics <momentics@gmail.com>
//
// NewRateEstimator exposes the internal windowed rate estimator (spec.md
// §3/§4.5) for handler code that wants to track its own throughput, e.g.
// bytes read per endpoint, using the same window/cap/clock this Reactor
// was configured with.

package reactor

import "github.com/momentics/evreactor/internal/rate"

// NewRateEstimator constructs a rate estimator using this Reactor's
// configured window, sample cap, and clock.
func (r *Reactor) NewRateEstimator() *rate.Estimator {
	return rate.New(r.cfg.RateWindow, r.cfg.RateCap, r.cfg.Clock)
}
