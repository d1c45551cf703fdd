// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package off

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/metrics"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed   State = iota // requests allowed
	StateOpen                  // requests rejected
	StateHalfOpen              // one probe allowed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling an upstream after repeated failures and
// probes it again once resetTimeout has passed.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	isFailure        func(error) bool
	now              func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker creates a closed breaker. isFailure decides which errors
// count; nil counts every error.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, isFailure func(error) bool) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		isFailure:        isFailure,
		now:              time.Now,
	}
	metrics.SetBreakerState(name, cb.state.String())
	return cb
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil && cb.isFailure(err) {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			return false
		}
		cb.setStateLocked(StateHalfOpen)
		cb.probing = true
		return true
	default:
		// half-open admits a single probe
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.probing = false

	switch {
	case cb.state == StateHalfOpen:
		metrics.RecordBreakerTrip(cb.name, "probe_failed")
		cb.setStateLocked(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.failureThreshold:
		metrics.RecordBreakerTrip(cb.name, "failure_threshold")
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.setStateLocked(StateClosed)
}

func (cb *CircuitBreaker) setStateLocked(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	metrics.SetBreakerState(cb.name, s.String())
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
