// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/nutriscan/internal/capture"
	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/ManuGH/nutriscan/internal/history"
	"github.com/ManuGH/nutriscan/internal/off"
	"github.com/ManuGH/nutriscan/internal/page"
	"github.com/stretchr/testify/require"
)

const goodEAN = "4006381333931"

type staticConfig struct{ cfg config.AppConfig }

func (s staticConfig) Get() config.AppConfig { return s.cfg }

type stubRecognizer struct{}

func (stubRecognizer) ListCaptureDevices(context.Context) ([]capture.Device, error) {
	return nil, capture.ErrNoDevices
}

func (stubRecognizer) StartStream(context.Context, string, capture.StreamConfig, func(string)) (capture.Subscription, error) {
	return nil, errors.New("no stream")
}

func (stubRecognizer) DecodeImage(_ context.Context, f capture.File, _ bool) (string, error) {
	if f.Name == "good.png" {
		return goodEAN, nil
	}
	return "", errors.New("not found")
}

type fakeProducts struct {
	search   func(off.Query) (off.SearchResult, error)
	mealPlan func(off.MealPlanRequest) (off.MealPlan, error)
	product  func(string) (off.Product, error)
}

func (f *fakeProducts) Search(_ context.Context, q off.Query) (off.SearchResult, error) {
	return f.search(q)
}

func (f *fakeProducts) MealPlan(_ context.Context, req off.MealPlanRequest) (off.MealPlan, error) {
	return f.mealPlan(req)
}

func (f *fakeProducts) Product(_ context.Context, code string) (off.Product, error) {
	return f.product(code)
}

type fakeHistory struct {
	scans []history.ScanRecord
	limit int
	err   error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.ScanRecord, error) {
	f.limit = limit
	return f.scans, f.err
}

func testConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.Capture.ReloadDelay = time.Minute
	cfg.Capture.MaxUploadBytes = 1 << 10
	cfg.RateLimit.Enabled = false
	return cfg
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	pages  *page.Registry
}

func newTestEnv(t *testing.T, cfg config.AppConfig, mutate func(*Deps)) *testEnv {
	t.Helper()

	capCfg := capture.DefaultConfig()
	capCfg.ReloadDelay = cfg.Capture.ReloadDelay
	capCfg.InputID = cfg.Capture.InputID
	pages := page.NewRegistry(time.Hour, 0, func(id string) (*page.Page, error) {
		return page.New(id, capCfg, stubRecognizer{})
	})

	deps := Deps{Config: staticConfig{cfg}, Pages: pages, Version: "test"}
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := New(deps)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	t.Cleanup(func() {
		client.CloseIdleConnections()
		ts.Close()
		pages.Close()
	})
	return &testEnv{server: ts, client: client, pages: pages}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) upload(t *testing.T, name string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.do(t, http.MethodPost, "/api/scan/file", &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
