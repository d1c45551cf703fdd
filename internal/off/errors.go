// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package off

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("upstream: product not found")
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("upstream: internal error (5xx)")
	ErrUpstreamBadResponse = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout             = errors.New("upstream: request timed out")
	ErrRateLimited         = errors.New("upstream: rate limited")
	ErrInvalidBarcode      = errors.New("invalid barcode")
)

// OFFError wraps a sentinel with the operation and HTTP details.
type OFFError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error
}

func (e *OFFError) Error() string {
	msg := fmt.Sprintf("openfoodfacts: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OFFError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// countsAsFailure reports whether err should trip the circuit breaker.
// Client-side problems (404, bad input) say nothing about upstream health.
func countsAsFailure(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamError) ||
		errors.Is(err, ErrTimeout)
}
