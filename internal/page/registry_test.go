// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package page

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/nutriscan/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testFactory(id string) (*Page, error) {
	return New(id, capture.DefaultConfig(), &stubRecognizer{decode: decodeByName})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewRegistry(time.Minute, time.Minute, testFactory)
	defer r.Close()

	p, created, err := r.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, p.ID())

	again, created, err := r.GetOrCreate(p.ID())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, p, again)

	other, created, err := r.GetOrCreate("forged-id")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "forged-id", other.ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_EvictionClosesPage(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, 0, testFactory)
	defer r.Close()

	p, _, err := r.GetOrCreate("")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.Sweep())
	_, ok := r.Get(p.ID())
	assert.False(t, ok)

	_, err = p.Controller().HandleFileSelected(context.Background(), &capture.File{Name: "good.png"})
	assert.ErrorIs(t, err, capture.ErrClosed)
}

func TestRegistry_CloseClosesPages(t *testing.T) {
	r := NewRegistry(time.Minute, 0, testFactory)
	p, _, err := r.GetOrCreate("")
	require.NoError(t, err)

	r.Close()
	assert.Zero(t, r.Len())
	_, err = p.Controller().StartCameraCapture(context.Background())
	assert.ErrorIs(t, err, capture.ErrClosed)
}
