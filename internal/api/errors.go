// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/off"
)

// Error codes of the JSON error envelope.
const (
	codeInvalidParameter    = "invalid_parameter"
	codeFileTooLarge        = "file_too_large"
	codePageClosed          = "page_closed"
	codeNotFound            = "not_found"
	codeInvalidBarcode      = "invalid_barcode"
	codeUpstreamTimeout     = "upstream_timeout"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeUpstreamError       = "upstream_error"
	codeFeatureDisabled     = "feature_disabled"
	codeInternal            = "internal_error"
)

type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope. Server-side failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	if status >= http.StatusInternalServerError {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Str(xglog.FieldEvent, "api.error").
			Str(xglog.FieldPath, r.URL.Path).
			Int(xglog.FieldStatus, status).
			Str("code", code).
			Msg(detail)
	}
	writeJSON(w, status, errorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: xglog.RequestIDFromContext(r.Context()),
	})
}

// writeUpstreamError maps Open Food Facts failures to HTTP statuses.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// client went away
		return
	case errors.Is(err, off.ErrInvalidBarcode):
		writeError(w, r, http.StatusBadRequest, codeInvalidBarcode, "barcode must be 4 to 14 digits")
	case errors.Is(err, off.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "product not found")
	case errors.Is(err, off.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, codeUpstreamTimeout, "Open Food Facts did not answer in time")
	case errors.Is(err, off.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		writeError(w, r, http.StatusServiceUnavailable, codeUpstreamUnavailable, "Open Food Facts is temporarily unavailable")
	case errors.Is(err, off.ErrUpstreamUnavailable), errors.Is(err, off.ErrRateLimited):
		writeError(w, r, http.StatusServiceUnavailable, codeUpstreamUnavailable, err.Error())
	default:
		writeError(w, r, http.StatusBadGateway, codeUpstreamError, err.Error())
	}
}
