// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	upstreamBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nutriscan_upstream_breaker_state",
		Help: "1 for the current breaker state of an upstream, 0 for the others",
	}, []string{"upstream", "state"})

	upstreamBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_upstream_breaker_trips_total",
		Help: "Times an upstream breaker opened, by reason",
	}, []string{"upstream", "reason"})
)

// SetBreakerState marks state as the current one for upstream.
func SetBreakerState(upstream, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		upstreamBreakerState.WithLabelValues(upstream, s).Set(v)
	}
}

// RecordBreakerTrip counts a transition to open.
func RecordBreakerTrip(upstream, reason string) {
	upstreamBreakerTrips.WithLabelValues(upstream, reason).Inc()
}
