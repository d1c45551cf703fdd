// SPDX-License-Identifier: MIT

// Package health serves liveness and readiness probes with per-component
// status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/log"
	"golang.org/x/sync/errgroup"
)

// Status is the overall or per-component state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// defaultCheckTimeout bounds each checker.
const defaultCheckTimeout = 2 * time.Second

// CheckResult is the result of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker checks one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs registered checkers.
type Manager struct {
	version  string
	started  time.Time
	timeout  time.Duration
	mu       sync.RWMutex
	checkers []Checker
}

// NewManager creates a manager.
func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now(), timeout: defaultCheckTimeout}
}

// RegisterChecker adds a checker.
func (m *Manager) RegisterChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// run executes all checkers concurrently, each bounded by the check timeout.
func (m *Manager) run(ctx context.Context) (map[string]CheckResult, Status) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	out := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		out[c.Name()] = results[i]
		switch results[i].Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return out, overall
}

// Health is the liveness view. Component checks run only when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.started).Round(time.Second).String(),
	}
	if verbose {
		checks, status := m.run(ctx)
		if len(checks) > 0 {
			resp.Checks = checks
			resp.Status = status
		}
	}
	return resp
}

// Ready is the readiness view; any unhealthy component makes it not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	checks, status := m.run(ctx)
	resp := ReadinessResponse{
		Ready:     status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
	}
	if len(checks) > 0 {
		resp.Checks = checks
	}
	return resp
}

// ServeHealth always answers 200 while the process is alive.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady answers 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}
