// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/nutriscan/internal/history"
	"github.com/ManuGH/nutriscan/internal/platform/httpx"
	pnet "github.com/ManuGH/nutriscan/internal/platform/net"
)

// Submission is one host form submission.
type Submission struct {
	PageID   string
	Modality string
	InputID  string
	Value    string
	Values   map[string]string
	At       time.Time
}

// Sink receives form submissions.
type Sink interface {
	Accept(ctx context.Context, s Submission) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s Submission) error

// Accept calls f.
func (f SinkFunc) Accept(ctx context.Context, s Submission) error { return f(ctx, s) }

// Forwarder posts submissions to the host form action as
// application/x-www-form-urlencoded.
type Forwarder struct {
	client    *http.Client
	actionURL string
}

// NewForwarder creates a Forwarder for actionURL.
func NewForwarder(actionURL string, timeout time.Duration) *Forwarder {
	return &Forwarder{
		client:    httpx.NewClient(timeout, httpx.WithTracing("form.forward")),
		actionURL: actionURL,
	}
}

// Accept implements Sink.
func (f *Forwarder) Accept(ctx context.Context, s Submission) error {
	form := url.Values{}
	for k, v := range s.Values {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.actionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("forward submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward submission: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("forward submission: %s returned status %d", pnet.SanitizeURL(f.actionURL), resp.StatusCode)
	}
	return nil
}

// Recorder stores scan records.
type Recorder interface {
	Record(ctx context.Context, r history.ScanRecord) (history.ScanRecord, error)
}

// HistorySink records every non-empty submission.
func HistorySink(rec Recorder) Sink {
	return SinkFunc(func(ctx context.Context, s Submission) error {
		if strings.TrimSpace(s.Value) == "" {
			return nil
		}
		_, err := rec.Record(context.WithoutCancel(ctx), history.ScanRecord{
			PageID:    s.PageID,
			Modality:  s.Modality,
			Value:     s.Value,
			CreatedAt: s.At,
		})
		return err
	})
}
