// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package web renders the HTML pages and serves the embedded assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	xglog "github.com/ManuGH/nutriscan/internal/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	PageScan      = "scan.html"
	PageNutrition = "nutrition.html"
	PageSearch    = "search.html"
)

// PageData is the model shared by all page templates.
type PageData struct {
	Title   string
	Version string
	// InputID is the form input receiving decoded barcodes.
	InputID string
	// Fields are the nutrition inputs checked on submit.
	Fields     []string
	SortOrders []string
}

// UI holds the parsed templates.
type UI struct {
	tmpl    *template.Template
	version string
}

// New parses the embedded templates.
func New(version string) (*UI, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"title": func(s string) string { return cases.Title(language.English).String(s) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &UI{tmpl: tmpl, version: version}, nil
}

// Render executes the named page into w. Pages are never cached so a
// reload always picks up fresh state.
func (u *UI) Render(w http.ResponseWriter, r *http.Request, name string, data PageData) {
	data.Version = u.version

	var buf bytes.Buffer
	if err := u.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "web")
		logger.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "page not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = buf.WriteTo(w)
}

// Static serves the embedded assets. Mount it with the prefix stripped.
// Asset URLs carry ?v=<version>, so they may be cached for a day.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "assets not available", http.StatusInternalServerError)
		})
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
