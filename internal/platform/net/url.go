// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net holds URL helpers shared by outbound HTTP callers.
package net

import (
	"errors"
	"net/url"
	"strings"
)

// SanitizeURL drops credentials, query and fragment so a URL can be logged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// ParseDirectHTTPURL accepts only absolute http(s) URLs with a host and no
// embedded credentials or fragment. Submissions are posted to such URLs.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, false
	}
	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}
	return u, true
}

// BaseURL turns "host:port", ":port" or a full URL into a scheme://host:port
// base without a trailing slash. An empty host becomes localhost.
func BaseURL(s, defaultScheme string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty address")
	}
	if !strings.Contains(s, "://") {
		if defaultScheme == "" {
			defaultScheme = "http"
		}
		if strings.HasPrefix(s, ":") {
			s = "localhost" + s
		}
		s = defaultScheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("empty host")
	}
	return u.Scheme + "://" + u.Host, nil
}
