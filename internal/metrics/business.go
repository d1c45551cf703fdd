// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_nutrition_validations_total",
		Help: "Nutrition form validations by outcome",
	}, []string{"outcome"}) // outcome=valid|invalid

	invalidFieldsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_nutrition_invalid_fields_total",
		Help: "Invalid nutrition fields by name",
	}, []string{"field"})

	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_upstream_requests_total",
		Help: "Requests to upstream APIs by operation and outcome",
	}, []string{"upstream", "operation", "outcome"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nutriscan_upstream_request_duration_seconds",
		Help:    "Upstream API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "operation"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"}) // result=hit|miss

	scanHistoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_scan_history_writes_total",
		Help: "Scan history inserts by outcome",
	}, []string{"outcome"})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriscan_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"outcome"})
)

// RecordValidation records one nutrition form validation.
func RecordValidation(valid bool, invalidFields []string) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	validationsTotal.WithLabelValues(outcome).Inc()
	for _, f := range invalidFields {
		invalidFieldsTotal.WithLabelValues(f).Inc()
	}
}

// RecordUpstreamRequest records one upstream call.
func RecordUpstreamRequest(upstream, operation, outcome string, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(upstream, operation, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(upstream, operation).Observe(d.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordScanHistoryWrite records one history insert.
func RecordScanHistoryWrite(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	scanHistoryWrites.WithLabelValues(outcome).Inc()
}

// RecordConfigReload records one config reload.
func RecordConfigReload(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	configReloadsTotal.WithLabelValues(outcome).Inc()
}
