// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package off

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", threshold, 30*time.Second, nil)
	cb.now = func() time.Time { return now }
	return cb, &now
}

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	for range 2 {
		assert.ErrorIs(t, cb.Execute(fail), errBoom)
		assert.Equal(t, StateClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2)
	_ = cb.Execute(fail)
	assert.NoError(t, cb.Execute(succeed))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	*now = now.Add(31 * time.Second)
	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(fail)
	*now = now.Add(31 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State(), "failed probe reopens")
}

func TestCircuitBreaker_HalfOpenAdmitsOneProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Execute(fail)
	*now = now.Add(time.Minute)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(func() error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute, countsAsFailure)
	err := cb.Execute(func() error { return &OFFError{Sentinel: ErrNotFound, Operation: "product"} })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StateClosed, cb.State())
}
