// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "test", ExporterType: "invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "nutriscan",
		SamplingRate: 1,
		Exporter:     exp,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "decode")
	span.SetAttributes(DecodeAttributes("image", 1024, true)...)
	RecordError(span, errors.New("no barcode"))
	RecordError(span, nil)
	span.End()

	require.NoError(t, provider.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "decode", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.Bool(DecodeTryHardKey, true))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1.5).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestCaptureAttributes(t *testing.T) {
	attrs := CaptureAttributes("", "s1", "file")
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(CaptureSessionKey, "s1"),
		attribute.String(CaptureModalityKey, "file"),
	}, attrs)
	assert.Len(t, SearchAttributes("search", "snacks", 1, false), 4)
}
