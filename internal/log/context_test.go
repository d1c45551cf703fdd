// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			//nolint:staticcheck // nil context is part of the contract under test
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			if got := RequestIDFromContext(ctx); got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageAndSessionIDs(t *testing.T) {
	ctx := ContextWithPageID(context.Background(), "page-1")
	ctx = ContextWithSessionID(ctx, "sess-1")

	if got := PageIDFromContext(ctx); got != "page-1" {
		t.Errorf("PageIDFromContext() = %q, want page-1", got)
	}
	if got := SessionIDFromContext(ctx); got != "sess-1" {
		t.Errorf("SessionIDFromContext() = %q, want sess-1", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty session id, got %q", got)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithPageID(ctx, "page-9")

	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry[FieldRequestID])
	}
	if entry[FieldPageID] != "page-9" {
		t.Errorf("page_id = %v, want page-9", entry[FieldPageID])
	}
	if _, ok := entry[FieldSessionID]; ok {
		t.Errorf("session_id must be absent when not in context")
	}
}

func TestWithContextWithoutFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if len(entry) != 2 { // level + message
		t.Errorf("expected only level and message, got %v", entry)
	}
}
