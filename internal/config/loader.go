// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "NUTRISCAN_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means
// defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) consume(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key string, dst *string) { *dst = ParseString(l.consume(key), *dst) }
func (l *Loader) envInt(key string, dst *int)       { *dst = ParseInt(l.consume(key), *dst) }
func (l *Loader) envInt64(key string, dst *int64)   { *dst = ParseInt64(l.consume(key), *dst) }
func (l *Loader) envBool(key string, dst *bool)     { *dst = ParseBool(l.consume(key), *dst) }
func (l *Loader) envFloat(key string, dst *float64) { *dst = ParseFloat(l.consume(key), *dst) }
func (l *Loader) envList(key string, dst *[]string) { *dst = ParseList(l.consume(key), *dst) }
func (l *Loader) envDuration(key string, dst *time.Duration) {
	*dst = ParseDuration(l.consume(key), *dst)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg, l.configPath); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// mergeFile decodes the YAML file over cfg with STRICT parsing.
// Keys missing from the file keep their current value.
func (l *Loader) mergeFile(cfg *AppConfig, path string) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	l.envString("DATA_DIR", &cfg.DataDir)

	l.envString("LISTEN", &cfg.Server.ListenAddr)
	l.envDuration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	l.envInt("MAX_CONNECTIONS", &cfg.Server.MaxConnections)
	l.envList("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	l.envString("LOG_LEVEL", &cfg.Log.Level)

	l.envInt("CAPTURE_FPS", &cfg.Capture.FrameRate)
	l.envInt("CAPTURE_REGION", &cfg.Capture.DetectionRegion)
	l.envDuration("RELOAD_DELAY", &cfg.Capture.ReloadDelay)
	l.envBool("TRY_HARDER", &cfg.Capture.TryHarder)
	l.envInt64("MAX_UPLOAD_BYTES", &cfg.Capture.MaxUploadBytes)
	l.envDuration("PAGE_TTL", &cfg.Capture.PageTTL)

	l.envString("FORM_ACTION_URL", &cfg.Form.ActionURL)
	l.envString("NUTRITION_ACTION_URL", &cfg.Nutrition.ActionURL)
	l.envList("NUTRITION_FIELDS", &cfg.Nutrition.Fields)

	l.envString("OFF_BASE_URL", &cfg.OFF.BaseURL)
	l.envDuration("OFF_TIMEOUT", &cfg.OFF.Timeout)
	l.envDuration("OFF_SEARCH_TTL", &cfg.OFF.SearchTTL)

	l.envString("CACHE_BACKEND", &cfg.Cache.Backend)
	l.envString("REDIS_ADDR", &cfg.Cache.Redis.Addr)
	l.envString("REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	l.envInt("REDIS_DB", &cfg.Cache.Redis.DB)

	l.envBool("HISTORY_ENABLED", &cfg.History.Enabled)
	l.envString("HISTORY_PATH", &cfg.History.Path)

	l.envBool("RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	l.envInt("RATELIMIT_RPM", &cfg.RateLimit.RequestsPerMinute)
	l.envFloat("UPLOAD_RPS", &cfg.RateLimit.UploadRPS)
	l.envInt("UPLOAD_BURST", &cfg.RateLimit.UploadBurst)

	l.envBool("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	l.envString("OTLP_EXPORTER", &cfg.Telemetry.Exporter)
	l.envString("OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	l.envFloat("TRACE_SAMPLING", &cfg.Telemetry.SamplingRate)
}
