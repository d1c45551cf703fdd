// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/nutriscan/internal/log"
	"github.com/rs/zerolog"
)

// lookup returns the raw value of key, treating an empty variable as unset.
// Every decision is logged with its source.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return "", false
	}
	if v == "" {
		logger.Debug().Str("key", key).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return v, true
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

// ParseInt reads an integer from environment variable or returns default value.
// Unparseable values fall back to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	return parseWith(key, defaultValue, strconv.Atoi, "integer")
}

// ParseInt64 is ParseInt for 64-bit values.
func ParseInt64(key string, defaultValue int64) int64 {
	return parseWith(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}, "integer")
}

// ParseDuration reads a Go duration ("5s") from environment variable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseWith(key, defaultValue, time.ParseDuration, "duration")
}

// ParseFloat reads a float64 from environment variable.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseWith(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, "float")
}

// ParseBool reads a boolean from environment variable.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseWith(key, defaultValue, parseBool, "boolean")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// ParseList reads a comma-separated list, trimming blanks.
func ParseList(key string, defaultValue []string) []string {
	return parseWith(key, defaultValue, func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}, "list")
}

func parseWith[T any](key string, defaultValue T, parse func(string) (T, error), kind string) T {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msgf("invalid %s in environment variable, using default", kind)
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}
