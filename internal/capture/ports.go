// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"time"
)

// Device describes one capture device offered by the recognizer.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StreamConfig is the fixed scan configuration for camera streams.
type StreamConfig struct {
	FrameRate       int // frames per second
	DetectionRegion int // edge of the centred square scanned in each frame, in pixels
}

// File is an image handed over by the file picker.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Subscription is a running decode stream.
type Subscription interface {
	Stop()
}

// Recognizer is the external recognition capability.
type Recognizer interface {
	ListCaptureDevices(ctx context.Context) ([]Device, error)
	// StartStream starts continuous decoding on deviceID. onDecoded may be
	// called from any goroutine; callers must tolerate repeated calls.
	StartStream(ctx context.Context, deviceID string, cfg StreamConfig, onDecoded func(text string)) (Subscription, error)
	DecodeImage(ctx context.Context, file File, tryHarder bool) (string, error)
}

// Surface is the output area of the page: message element and scanner box.
type Surface interface {
	SetMessage(msg string)
	SetErrorStyle(on bool)
	ShowFallback()
	HideFallback()
}

// Form is the host form receiving the decoded value.
type Form interface {
	SetValue(inputID, value string)
	Submit(ctx context.Context) error
}

// FilePicker opens the native file-selection affordance.
type FilePicker interface {
	OpenPicker()
}

// Timer is a pending, cancellable reload.
type Timer interface {
	// Stop cancels the reload; it reports false if it already fired or was stopped.
	Stop() bool
}

// Reloader schedules a full page reload.
type Reloader interface {
	ScheduleReload(after time.Duration) Timer
}
