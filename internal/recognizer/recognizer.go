// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package recognizer is the in-process barcode recognition capability:
// capture device enumeration, continuous stream decoding and still image
// decoding on top of gozxing.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/capture"
	"github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/ManuGH/nutriscan/internal/platform/httpx"
	pnet "github.com/ManuGH/nutriscan/internal/platform/net"
	"github.com/ManuGH/nutriscan/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DeviceSpec configures one capture device. Exactly one of SnapshotURL and
// Directory is set.
type DeviceSpec struct {
	ID          string
	Label       string
	SnapshotURL string
	Directory   string
}

// Config configures a Recognizer.
type Config struct {
	Devices       []DeviceSpec
	FrameTimeout  time.Duration
	MaxImageBytes int64
}

type device struct {
	info   capture.Device
	source FrameSource
}

// Recognizer implements capture.Recognizer.
type Recognizer struct {
	frameTimeout time.Duration
	maxBytes     int64
	logger       zerolog.Logger
	tracer       trace.Tracer

	mu      sync.RWMutex
	devices []device
	streams map[*stream]struct{}
	closed  bool
}

var _ capture.Recognizer = (*Recognizer)(nil)

// New creates a Recognizer.
func New(cfg Config) *Recognizer {
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 5 * time.Second
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	r := &Recognizer{
		frameTimeout: cfg.FrameTimeout,
		maxBytes:     cfg.MaxImageBytes,
		logger:       log.WithComponent("recognizer"),
		tracer:       telemetry.Tracer("nutriscan/recognizer"),
		streams:      make(map[*stream]struct{}),
	}
	r.SetDevices(cfg.Devices)
	return r
}

// SetDevices replaces the device list. Running streams keep their source.
func (r *Recognizer) SetDevices(specs []DeviceSpec) {
	client := httpx.NewClient(r.frameTimeout, httpx.WithTracing("camera.snapshot"))
	devices := make([]device, 0, len(specs))
	for _, s := range specs {
		d := device{info: capture.Device{ID: s.ID, Label: s.Label}}
		if s.SnapshotURL != "" {
			d.source = &snapshotSource{client: client, url: s.SnapshotURL, maxBytes: r.maxBytes}
			r.logger.Debug().Str("device", s.ID).Str("url", pnet.SanitizeURL(s.SnapshotURL)).Msg("snapshot device")
		} else {
			d.source = &directorySource{dir: s.Directory}
		}
		devices = append(devices, d)
	}

	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()
	r.logger.Info().Int("devices", len(devices)).Msg("capture devices configured")
}

// ListCaptureDevices returns the configured devices, or capture.ErrNoDevices.
func (r *Recognizer) ListCaptureDevices(ctx context.Context) ([]capture.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.devices) == 0 {
		return nil, capture.ErrNoDevices
	}
	out := make([]capture.Device, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.info
	}
	return out, nil
}

// StartStream probes the device with one frame, then decodes frames at
// cfg.FrameRate until one yields a barcode, the subscription is stopped or
// ctx ends. onDecoded runs at most once.
func (r *Recognizer) StartStream(ctx context.Context, deviceID string, cfg capture.StreamConfig, onDecoded func(string)) (capture.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "recognizer.StartStream")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.DecodeDeviceKey, deviceID))

	src, err := r.source(deviceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, r.frameTimeout)
	_, err = src.Frame(pctx)
	cancel()
	if err != nil {
		metrics.RecordFrame(deviceID, false)
		err = fmt.Errorf("open device %s: %w", deviceID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 10
	}
	sctx, scancel := context.WithCancel(ctx)

	s := &stream{
		deviceID: deviceID,
		source:   src,
		interval: time.Second / time.Duration(fps),
		region:   cfg.DetectionRegion,
		timeout:  r.frameTimeout,
		logger:   r.logger.With().Str(log.FieldDeviceID, deviceID).Logger(),
		cancel:   scancel,
		done:     make(chan struct{}),
	}
	var once sync.Once
	s.onDecoded = func(text string) { once.Do(func() { onDecoded(text) }) }

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.cancel()
		return nil, ErrClosed
	}
	r.streams[s] = struct{}{}
	r.mu.Unlock()

	go func() {
		s.run(sctx)
		r.mu.Lock()
		delete(r.streams, s)
		r.mu.Unlock()
	}()

	s.logger.Info().Int(log.FieldFPS, fps).Int(log.FieldRegion, cfg.DetectionRegion).Msg("stream started")
	return s, nil
}

func (r *Recognizer) source(deviceID string) (FrameSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	for _, d := range r.devices {
		if d.info.ID == deviceID {
			return d.source, nil
		}
	}
	if len(r.devices) == 0 {
		return nil, capture.ErrNoDevices
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
}

// DecodeImage decodes a still image. tryHarder trades latency for accuracy.
func (r *Recognizer) DecodeImage(ctx context.Context, file capture.File, tryHarder bool) (string, error) {
	_, span := r.tracer.Start(ctx, "recognizer.DecodeImage")
	defer span.End()
	span.SetAttributes(telemetry.DecodeAttributes("image", len(file.Data), tryHarder)...)

	text, err := r.decodeImage(file, tryHarder)
	switch {
	case err == nil:
		metrics.RecordDecodeAttempt("image", "decoded")
	case errors.Is(err, ErrNotFound):
		metrics.RecordDecodeAttempt("image", "not_found")
	default:
		metrics.RecordDecodeAttempt("image", "error")
	}
	telemetry.RecordError(span, err)
	return text, err
}

func (r *Recognizer) decodeImage(file capture.File, tryHarder bool) (string, error) {
	if int64(len(file.Data)) > r.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(file.Data))
	}
	img, format, err := decodeBytes(file.Data)
	if err != nil {
		return "", err
	}
	d, err := decodeBarcode(fit(img), tryHarder)
	if err != nil {
		r.logger.Debug().Str("file", file.Name).Str("image_format", format).Msg("no barcode in image")
		return "", err
	}
	r.logger.Debug().Str("file", file.Name).Str(log.FieldFormat, d.Format).Msg("barcode decoded from image")
	return d.Text, nil
}

// Check reports whether at least one device is configured; used by readiness.
func (r *Recognizer) Check(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.devices) == 0 {
		return capture.ErrNoDevices
	}
	return nil
}

// Close stops every running stream and rejects new ones.
func (r *Recognizer) Close() {
	r.mu.Lock()
	r.closed = true
	streams := make([]*stream, 0, len(r.streams))
	for s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
}
