// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	CaptureModalityKey = "capture.modality"
	CaptureSessionKey  = "capture.session_id"
	CapturePageKey     = "capture.page_id"
	CaptureOutcomeKey  = "capture.outcome"

	DecodeSourceKey  = "decode.source"
	DecodeFormatKey  = "decode.format"
	DecodeBytesKey   = "decode.bytes"
	DecodeDeviceKey  = "decode.device"
	DecodeTryHardKey = "decode.try_harder"

	UpstreamOperationKey = "upstream.operation"
	UpstreamCacheHitKey  = "upstream.cache_hit"
	SearchCategoryKey    = "search.category"
	SearchPageKey        = "search.page"

	ErrorTypeKey = "error.type"
)

// CaptureAttributes describes a capture session.
func CaptureAttributes(pageID, sessionID, modality string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if pageID != "" {
		attrs = append(attrs, attribute.String(CapturePageKey, pageID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(CaptureSessionKey, sessionID))
	}
	return append(attrs, attribute.String(CaptureModalityKey, modality))
}

// DecodeAttributes describes one image decode.
func DecodeAttributes(source string, size int, tryHarder bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DecodeSourceKey, source),
		attribute.Int(DecodeBytesKey, size),
		attribute.Bool(DecodeTryHardKey, tryHarder),
	}
}

// SearchAttributes describes an upstream product search.
func SearchAttributes(operation, category string, page int, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(UpstreamOperationKey, operation),
		attribute.String(SearchCategoryKey, category),
		attribute.Int(SearchPageKey, page),
		attribute.Bool(UpstreamCacheHitKey, cacheHit),
	}
}
