// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the pages and the JSON endpoints of nutriscan.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/nutriscan/internal/api/middleware"
	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/ManuGH/nutriscan/internal/health"
	"github.com/ManuGH/nutriscan/internal/history"
	"github.com/ManuGH/nutriscan/internal/off"
	"github.com/ManuGH/nutriscan/internal/page"
	"github.com/ManuGH/nutriscan/internal/ratelimit"
	"github.com/ManuGH/nutriscan/internal/web"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConfigSource yields the current configuration. Implemented by
// config.ConfigHolder; handlers read it per request so reloads apply.
type ConfigSource interface {
	Get() config.AppConfig
}

// Products is the Open Food Facts surface used by the handlers.
type Products interface {
	Product(ctx context.Context, barcode string) (off.Product, error)
	Search(ctx context.Context, q off.Query) (off.SearchResult, error)
	MealPlan(ctx context.Context, req off.MealPlanRequest) (off.MealPlan, error)
}

// History lists recorded scans.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.ScanRecord, error)
}

// Deps are the collaborators of the server. Products, History and
// UploadLimiter are optional.
type Deps struct {
	Config        ConfigSource
	Pages         *page.Registry
	Products      Products
	History       History
	Health        *health.Manager
	UploadLimiter *ratelimit.Limiter
	Version       string
}

// Server routes HTTP requests to pages, the validator and the product search.
type Server struct {
	deps Deps
	ui   *web.UI
}

// New validates deps and parses the page templates.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Pages == nil:
		return nil, errors.New("api: page registry is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Version)
	}
	ui, err := web.New(deps.Version)
	if err != nil {
		return nil, err
	}
	return &Server{deps: deps, ui: ui}, nil
}

// Handler builds the router. Probes and the metrics scrape bypass the
// request stack so they are never rate limited.
func (s *Server) Handler() http.Handler {
	cfg := s.deps.Config.Get()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	stack := middleware.StackConfig{
		EnableCORS:            len(cfg.Server.AllowedOrigins) > 0,
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		EnableRateLimit:       cfg.RateLimit.Enabled,
		RequestsPerMinute:     cfg.RateLimit.RequestsPerMinute,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = "nutriscan"
	}

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, stack)

		r.Get("/", s.handleScanPage)
		r.Get("/nutrition", s.handleNutritionPage)
		r.Post("/nutrition", s.handleNutritionSubmit)
		r.Get("/search", s.handleSearchPage)
		r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

		r.Route("/api", func(r chi.Router) {
			r.Post("/scan/camera", s.withPage(s.handleScanCamera))
			r.Post("/scan/upload-request", s.withPage(s.handleScanUploadRequest))
			if s.deps.UploadLimiter != nil {
				r.With(s.deps.UploadLimiter.Middleware).Post("/scan/file", s.withPage(s.handleScanFile))
			} else {
				r.Post("/scan/file", s.withPage(s.handleScanFile))
			}
			r.Get("/scan/state", s.withPage(s.handleScanState))

			r.Get("/search", s.handleSearch)
			r.Get("/mealplan", s.handleMealPlan)
			r.Get("/products/{barcode}", s.handleProduct)
			r.Get("/scans/recent", s.handleRecentScans)
		})
	})
	return r
}
