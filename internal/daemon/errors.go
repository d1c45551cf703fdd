// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when logger is not provided
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingHandler is returned when the HTTP handler is not provided
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrMissingManager is returned when an app is created without a manager.
	ErrMissingManager = errors.New("manager is required")

	// ErrManagerNotStarted is returned when trying to shutdown a manager that hasn't started
	ErrManagerNotStarted = errors.New("manager not started")

	// ErrServerStartFailed is returned when the listener cannot be opened
	ErrServerStartFailed = errors.New("server failed to start")
)
