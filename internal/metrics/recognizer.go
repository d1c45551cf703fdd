// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_decode_attempts_total",
		Help: "Barcode decode attempts by source and outcome",
	}, []string{"source", "outcome"}) // source=stream|image, outcome=decoded|not_found|error

	framesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_stream_frames_total",
		Help: "Frames pulled from capture devices",
	}, []string{"device", "outcome"}) // outcome=ok|error

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nutriscan_active_streams",
		Help: "Running camera decode streams",
	})
)

// RecordDecodeAttempt counts one decode attempt.
func RecordDecodeAttempt(source, outcome string) {
	decodeAttemptsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordFrame counts one frame fetched from a device.
func RecordFrame(device string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	framesFetchedTotal.WithLabelValues(device, outcome).Inc()
}

// IncActiveStreams marks a stream as started.
func IncActiveStreams() { activeStreams.Inc() }

// DecActiveStreams marks a stream as stopped.
func DecActiveStreams() { activeStreams.Dec() }
