// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/nutriscan/internal/api"
	"github.com/ManuGH/nutriscan/internal/cache"
	"github.com/ManuGH/nutriscan/internal/capture"
	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/ManuGH/nutriscan/internal/health"
	"github.com/ManuGH/nutriscan/internal/history"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/off"
	"github.com/ManuGH/nutriscan/internal/page"
	"github.com/ManuGH/nutriscan/internal/ratelimit"
	"github.com/ManuGH/nutriscan/internal/recognizer"
	"golang.org/x/time/rate"
)

// components are the long-lived collaborators of the HTTP server.
type components struct {
	holder     *config.ConfigHolder
	store      cache.Store
	history    *history.Store
	products   *off.Client
	recognizer *recognizer.Recognizer
	pages      *page.Registry
	limiter    *ratelimit.Limiter
	health     *health.Manager
}

func buildComponents(ctx context.Context, holder *config.ConfigHolder) (*components, error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")
	c := &components{holder: holder, health: health.NewManager(version)}

	switch cfg.Cache.Backend {
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		}, xglog.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.store = rs
		c.health.RegisterChecker(health.NewFuncChecker("cache", false, rs.HealthCheck))
	default:
		c.store = cache.NewMemoryStore(cfg.Cache.CleanupInterval)
	}

	if cfg.History.Enabled {
		hs, err := history.Open(ctx, cfg.HistoryPath())
		if err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("open scan history: %w", err)
		}
		c.history = hs
		c.health.RegisterChecker(health.NewFuncChecker("history", true, hs.Check))
		logger.Info().Str("path", cfg.HistoryPath()).Msg("scan history enabled")
	}

	c.products = off.New(off.Config{
		BaseURL:          cfg.OFF.BaseURL,
		UserAgent:        cfg.OFF.UserAgent,
		Timeout:          cfg.OFF.Timeout,
		SearchTTL:        cfg.OFF.SearchTTL,
		ProductTTL:       cfg.OFF.ProductTTL,
		FailureThreshold: cfg.OFF.FailureThreshold,
		ResetTimeout:     cfg.OFF.ResetTimeout,
	}, c.store)
	breaker := c.products.Breaker()
	c.health.RegisterChecker(health.NewFuncChecker("openfoodfacts", false, func(context.Context) error {
		if breaker.State() == off.StateOpen {
			return off.ErrCircuitOpen
		}
		return nil
	}))

	c.recognizer = recognizer.New(recognizer.Config{
		Devices:       deviceSpecs(cfg.Camera.Devices),
		FrameTimeout:  cfg.Camera.FrameTimeout,
		MaxImageBytes: cfg.Capture.MaxUploadBytes,
	})
	c.health.RegisterChecker(health.NewFuncChecker("camera", false, c.recognizer.Check))

	c.pages = page.NewRegistry(cfg.Capture.PageTTL, cfg.Cache.CleanupInterval, c.newPage)

	if cfg.RateLimit.Enabled {
		lcfg := ratelimit.DefaultConfig()
		lcfg.PerIPRate = rate.Limit(cfg.RateLimit.UploadRPS)
		lcfg.PerIPBurst = cfg.RateLimit.UploadBurst
		c.limiter = ratelimit.New(lcfg)
	}
	return c, nil
}

// newPage builds a page from the configuration current at creation time.
func (c *components) newPage(id string) (*page.Page, error) {
	cfg := c.holder.Get()
	capCfg := capture.Config{
		Stream: capture.StreamConfig{
			FrameRate:       cfg.Capture.FrameRate,
			DetectionRegion: cfg.Capture.DetectionRegion,
		},
		ReloadDelay: cfg.Capture.ReloadDelay,
		InputID:     cfg.Capture.InputID,
		TryHarder:   cfg.Capture.TryHarder,
	}
	var sinks []page.Sink
	if cfg.Form.ActionURL != "" {
		sinks = append(sinks, page.NewForwarder(cfg.Form.ActionURL, cfg.Form.Timeout))
	}
	if c.history != nil {
		sinks = append(sinks, page.HistorySink(c.history))
	}
	return page.New(id, capCfg, c.recognizer, sinks...)
}

func (c *components) handler() (http.Handler, error) {
	deps := api.Deps{
		Config:   c.holder,
		Pages:    c.pages,
		Products: c.products,
		Health:   c.health,
		Version:  version,
	}
	if c.history != nil {
		deps.History = c.history
	}
	if c.limiter != nil {
		deps.UploadLimiter = c.limiter
	}
	srv, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}

// applyConfig pushes reloadable settings into running components.
func (c *components) applyConfig(cfg config.AppConfig) {
	c.recognizer.SetDevices(deviceSpecs(cfg.Camera.Devices))
}

// close releases everything in reverse dependency order.
func (c *components) close(_ context.Context) {
	if c.pages != nil {
		c.pages.Close()
	}
	if c.recognizer != nil {
		c.recognizer.Close()
	}
	if c.limiter != nil {
		c.limiter.Close()
	}
	if c.history != nil {
		_ = c.history.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}

func deviceSpecs(devices []config.DeviceConfig) []recognizer.DeviceSpec {
	specs := make([]recognizer.DeviceSpec, 0, len(devices))
	for _, d := range devices {
		specs = append(specs, recognizer.DeviceSpec{
			ID:          d.ID,
			Label:       d.Label,
			SnapshotURL: d.SnapshotURL,
			Directory:   d.Directory,
		})
	}
	return specs
}
