// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldPageID    = "page_id"
	FieldSessionID = "session_id"
	FieldDeviceID  = "device_id"

	FieldEvent     = "event"
	FieldComponent = "component"

	// Capture fields
	FieldModality = "modality"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldFailure  = "failure"
	FieldFPS      = "fps"
	FieldRegion   = "detection_region"
	FieldFormat   = "format"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"

	// Upstream fields
	FieldUpstream = "upstream"
	FieldQuery    = "query"
)
