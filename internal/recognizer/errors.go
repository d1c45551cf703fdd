// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import "errors"

var (
	// ErrNotFound means no reader recognised a barcode in the image.
	ErrNotFound = errors.New("recognizer: no barcode found")
	// ErrUnsupportedImage means the bytes are not a decodable image.
	ErrUnsupportedImage = errors.New("recognizer: unsupported image")
	// ErrTooLarge means the image exceeds the byte or pixel limit.
	ErrTooLarge = errors.New("recognizer: image too large")
	// ErrUnknownDevice means the device id is not configured.
	ErrUnknownDevice = errors.New("recognizer: unknown device")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("recognizer: closed")
)
