// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"

	pnet "github.com/ManuGH/nutriscan/internal/platform/net"
	"github.com/ManuGH/nutriscan/internal/validate"
	"github.com/rs/zerolog"
)

// Validate checks a fully merged AppConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	v.ListenAddr("server.listenAddr", cfg.Server.ListenAddr)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	if cfg.Server.MaxConnections < 0 {
		v.AddError("server.maxConnections", "must be >= 0", cfg.Server.MaxConnections)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil || cfg.Log.Level == "" {
		v.AddError("log.level", "invalid log level (must be: trace, debug, info, warn, error)", cfg.Log.Level)
	}

	validate.Between(v, "capture.frameRate", cfg.Capture.FrameRate, 1, 60)
	validate.Between(v, "capture.detectionRegion", cfg.Capture.DetectionRegion, 16, 4096)
	v.PositiveDuration("capture.reloadDelay", cfg.Capture.ReloadDelay)
	v.NotEmpty("capture.inputId", cfg.Capture.InputID)
	validate.Between(v, "capture.maxUploadBytes", cfg.Capture.MaxUploadBytes, 1, 64<<20)
	v.PositiveDuration("capture.pageTTL", cfg.Capture.PageTTL)

	seen := make(map[string]struct{}, len(cfg.Camera.Devices))
	for i, d := range cfg.Camera.Devices {
		field := fmt.Sprintf("camera.devices[%d]", i)
		v.NotEmpty(field+".id", d.ID)
		if _, dup := seen[d.ID]; dup {
			v.AddError(field+".id", "duplicate device id", d.ID)
		}
		seen[d.ID] = struct{}{}
		switch {
		case d.SnapshotURL != "" && d.Directory != "":
			v.AddError(field, "set either snapshotUrl or directory, not both", d.ID)
		case d.SnapshotURL != "":
			v.URL(field+".snapshotUrl", d.SnapshotURL, "http", "https")
		case d.Directory != "":
			v.Directory(field+".directory", d.Directory, true)
		default:
			v.AddError(field, "one of snapshotUrl or directory is required", d.ID)
		}
	}
	v.PositiveDuration("camera.frameTimeout", cfg.Camera.FrameTimeout)

	if cfg.Form.ActionURL != "" {
		if _, ok := pnet.ParseDirectHTTPURL(cfg.Form.ActionURL); !ok {
			v.AddError("form.actionUrl", "must be an http(s) URL without credentials or fragment", pnet.SanitizeURL(cfg.Form.ActionURL))
		}
	}
	v.PositiveDuration("form.timeout", cfg.Form.Timeout)

	if len(cfg.Nutrition.Fields) == 0 {
		v.AddError("nutrition.fields", "at least one field is required", nil)
	}

	v.URL("openFoodFacts.baseUrl", cfg.OFF.BaseURL, "http", "https")
	v.PositiveDuration("openFoodFacts.timeout", cfg.OFF.Timeout)
	v.PositiveDuration("openFoodFacts.searchTTL", cfg.OFF.SearchTTL)
	v.PositiveDuration("openFoodFacts.productTTL", cfg.OFF.ProductTTL)
	validate.Between(v, "openFoodFacts.failureThreshold", cfg.OFF.FailureThreshold, 1, 100)
	v.PositiveDuration("openFoodFacts.resetTimeout", cfg.OFF.ResetTimeout)

	v.OneOf("cache.backend", cfg.Cache.Backend, "memory", "redis")
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
	}
	v.PositiveDuration("cache.cleanupInterval", cfg.Cache.CleanupInterval)

	if cfg.RateLimit.Enabled {
		validate.Between(v, "rateLimit.requestsPerMinute", cfg.RateLimit.RequestsPerMinute, 1, 1_000_000)
		validate.Between(v, "rateLimit.uploadRps", cfg.RateLimit.UploadRPS, 0.01, 1000)
		validate.Between(v, "rateLimit.uploadBurst", cfg.RateLimit.UploadBurst, 1, 1000)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, "grpc", "http")
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		validate.Between(v, "telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0.0, 1.0)
	}

	return v.Err()
}
