// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	DataDir   string          `yaml:"dataDir"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Capture   CaptureConfig   `yaml:"capture"`
	Camera    CameraConfig    `yaml:"camera"`
	Form      FormConfig      `yaml:"form"`
	Nutrition NutritionConfig `yaml:"nutrition"`
	OFF       OFFConfig       `yaml:"openFoodFacts"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxConnections  int           `yaml:"maxConnections"` // 0 = unlimited
	AllowedOrigins  []string      `yaml:"allowedOrigins,omitempty"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `yaml:"level"`
}

// CaptureConfig holds the scan configuration of page controllers.
type CaptureConfig struct {
	FrameRate       int           `yaml:"frameRate"`
	DetectionRegion int           `yaml:"detectionRegion"`
	ReloadDelay     time.Duration `yaml:"reloadDelay"`
	InputID         string        `yaml:"inputId"`
	TryHarder       bool          `yaml:"tryHarder"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	PageTTL         time.Duration `yaml:"pageTTL"`
}

// CameraConfig lists the capture devices offered to pages.
type CameraConfig struct {
	Devices      []DeviceConfig `yaml:"devices,omitempty"`
	FrameTimeout time.Duration  `yaml:"frameTimeout"`
}

// DeviceConfig is one frame source. Exactly one of SnapshotURL and Directory is set.
type DeviceConfig struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	SnapshotURL string `yaml:"snapshotUrl,omitempty"`
	Directory   string `yaml:"directory,omitempty"`
}

// FormConfig is the host form decoded barcodes are forwarded to.
type FormConfig struct {
	ActionURL string        `yaml:"actionUrl"` // empty = record only
	Timeout   time.Duration `yaml:"timeout"`
}

// NutritionConfig configures the nutrition form.
type NutritionConfig struct {
	Fields    []string `yaml:"fields"`
	ActionURL string   `yaml:"actionUrl"`
}

// OFFConfig configures the Open Food Facts client.
type OFFConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	UserAgent        string        `yaml:"userAgent"`
	Timeout          time.Duration `yaml:"timeout"`
	SearchTTL        time.Duration `yaml:"searchTTL"`
	ProductTTL       time.Duration `yaml:"productTTL"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory|redis
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HistoryConfig configures the scan history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to <dataDir>/history.db
}

// RateLimitConfig configures request limits.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerMinute int     `yaml:"requestsPerMinute"`
	UploadRPS         float64 `yaml:"uploadRps"`
	UploadBurst       int     `yaml:"uploadBurst"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "/var/lib/nutriscan",
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Capture: CaptureConfig{
			FrameRate:       10,
			DetectionRegion: 200,
			ReloadDelay:     3 * time.Second,
			InputID:         "barcode",
			TryHarder:       true,
			MaxUploadBytes:  10 << 20,
			PageTTL:         30 * time.Minute,
		},
		Camera: CameraConfig{FrameTimeout: 5 * time.Second},
		Form:   FormConfig{Timeout: 10 * time.Second},
		Nutrition: NutritionConfig{
			Fields: []string{"sugar", "fat", "energy", "carbs", "protein"},
		},
		OFF: OFFConfig{
			BaseURL:          "https://world.openfoodfacts.org",
			UserAgent:        "nutriscan/1.0",
			Timeout:          15 * time.Second,
			SearchTTL:        10 * time.Minute,
			ProductTTL:       time.Hour,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
			Redis:           RedisConfig{Addr: "localhost:6379", Prefix: "nutriscan:"},
		},
		History: HistoryConfig{Enabled: true},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			UploadRPS:         2,
			UploadBurst:       5,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}

// HistoryPath returns the effective history database path.
func (c AppConfig) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.DataDir, "history.db")
}
