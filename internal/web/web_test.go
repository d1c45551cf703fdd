// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Pages(t *testing.T) {
	ui, err := New("1.2.3")
	require.NoError(t, err)

	tests := []struct {
		name string
		data PageData
		want []string
	}{
		{PageScan, PageData{Title: "Scan", InputID: "ean"}, []string{`id="ean"`, `data-input="ean"`, `id="scan-message"`, `id="product-detail"`, "/static/scan.js?v=1.2.3"}},
		{PageNutrition, PageData{Title: "Nutrition", Fields: []string{"sugar", "fat"}}, []string{`name="sugar"`, `name="fat"`, ">Sugar</label>"}},
		{PageSearch, PageData{Title: "Search", SortOrders: []string{"popularity"}}, []string{`<option value="popularity">`, `id="meal-plan"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ui.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.name, tt.data)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			for _, s := range tt.want {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestRender_UnknownPage(t *testing.T) {
	ui, err := New("dev")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ui.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), "missing.html", PageData{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatic(t *testing.T) {
	h := http.StripPrefix("/static/", Static())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), ".scan-message--error")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/scan.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fetch("/api/products/"`)
	assert.Contains(t, rec.Body.String(), "p.saturatedFat")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/nope.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
