// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors of the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_capture_sessions_total",
		Help: "Capture sessions by modality, terminal status and failure kind",
	}, []string{"modality", "status", "failure"})

	captureSessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nutriscan_capture_session_duration_seconds",
		Help:    "Time from session start to terminal state",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"modality", "status"})

	captureReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_capture_reloads_total",
		Help: "Page reloads after decode failure by action",
	}, []string{"action"}) // action=scheduled|cancelled|fired

	captureHandOffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_capture_handoffs_total",
		Help: "Decoded values handed off to the host form",
	}, []string{"modality", "outcome"}) // outcome=submitted|submit_failed

	activePages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nutriscan_active_pages",
		Help: "Browser pages with a live capture controller",
	})
)

// RecordCaptureOutcome records a session reaching a terminal state.
func RecordCaptureOutcome(modality, status, failure string, elapsed time.Duration) {
	captureSessionsTotal.WithLabelValues(modality, status, failure).Inc()
	captureSessionDuration.WithLabelValues(modality, status).Observe(elapsed.Seconds())
}

// RecordReload counts reload timer actions.
func RecordReload(action string) {
	captureReloadsTotal.WithLabelValues(action).Inc()
}

// RecordHandOff counts hand-offs to the host form.
func RecordHandOff(modality string, submitted bool) {
	outcome := "submitted"
	if !submitted {
		outcome = "submit_failed"
	}
	captureHandOffsTotal.WithLabelValues(modality, outcome).Inc()
}

// SetActivePages sets the number of live pages.
func SetActivePages(n int) {
	activePages.Set(float64(n))
}
