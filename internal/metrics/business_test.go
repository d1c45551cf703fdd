// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestCollectorsExposed(t *testing.T) {
	metrics.RecordCaptureOutcome("file", "failed", "decode_failure", 120*time.Millisecond)
	metrics.RecordReload("scheduled")
	metrics.RecordHandOff("camera", true)
	metrics.RecordValidation(false, []string{"fat"})
	metrics.RecordUpstreamRequest("openfoodfacts", "search", "success", time.Second)
	metrics.RecordCacheLookup("off_search", true)
	metrics.RecordDecodeAttempt("image", "not_found")
	metrics.SetBreakerState("openfoodfacts", "open")

	body := scrape(t)
	for _, want := range []string{
		`nutriscan_capture_sessions_total{failure="decode_failure",modality="file",status="failed"}`,
		`nutriscan_capture_reloads_total{action="scheduled"}`,
		`nutriscan_capture_handoffs_total{modality="camera",outcome="submitted"}`,
		`nutriscan_nutrition_invalid_fields_total{field="fat"}`,
		`nutriscan_upstream_requests_total{operation="search",outcome="success",upstream="openfoodfacts"}`,
		`nutriscan_cache_lookups_total{cache="off_search",result="hit"}`,
		`nutriscan_decode_attempts_total{outcome="not_found",source="image"}`,
		`nutriscan_upstream_breaker_state{state="open",upstream="openfoodfacts"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
