// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable covers an empty device list and stream-start rejection.
	ErrDeviceUnavailable = errors.New("capture: camera device unavailable")
	// ErrDecodeFailure means the image contained no recognisable barcode.
	ErrDecodeFailure = errors.New("capture: no barcode found")
	// ErrNoDevices is returned by a Recognizer that has no capture devices.
	ErrNoDevices = errors.New("capture: no capture devices")
	// ErrSuperseded terminates a session replaced by a newer one.
	ErrSuperseded = errors.New("capture: session superseded")
	// ErrClosed terminates a session whose controller was closed.
	ErrClosed = errors.New("capture: controller closed")
)

// Failure kinds, used as log and metric labels.
const (
	FailureDeviceUnavailable = "device_unavailable"
	FailureDecode            = "decode_failure"
	FailureSuperseded        = "superseded"
	FailureClosed            = "closed"
)

// FailureKind maps a session error to its label.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeviceUnavailable):
		return FailureDeviceUnavailable
	case errors.Is(err, ErrDecodeFailure):
		return FailureDecode
	case errors.Is(err, ErrSuperseded):
		return FailureSuperseded
	case errors.Is(err, ErrClosed):
		return FailureClosed
	default:
		return "unknown"
	}
}

// panicError carries a panic raised inside the recognition capability.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("recognizer panic: %v", e.value)
}
