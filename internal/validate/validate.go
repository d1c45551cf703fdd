// SPDX-License-Identifier: MIT

// Package validate accumulates field-level validation failures for
// configuration values and reports them as a single error.
package validate

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Error is a single failed check.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed check.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator collects failures. The zero value is ready to use.
type Validator struct {
	errors []Error
}

// New creates a validator.
func New() *Validator { return &Validator{} }

// AddError records a failure.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether no check failed so far.
func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL checks value is an absolute URL with a host and one of schemes.
func (v *Validator) URL(field, value string, schemes ...string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" {
		v.AddError(field, "URL must have a host", value)
		return
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes), value)
	}
}

// ListenAddr checks a host:port listen address.
func (v *Validator) ListenAddr(field, value string) {
	i := strings.LastIndex(value, ":")
	if i < 0 {
		v.AddError(field, "listen address must be host:port", value)
		return
	}
	var port int
	if _, err := fmt.Sscanf(value[i+1:], "%d", &port); err != nil || port < 1 || port > 65535 {
		v.AddError(field, "listen address has an invalid port", value)
	}
}

// Between checks minVal <= value <= maxVal.
func Between[T cmp.Ordered](v *Validator, field string, value, minVal, maxVal T) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %v and %v, got %v", minVal, maxVal, value), value)
	}
}

// PositiveDuration checks d > 0.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, fmt.Sprintf("duration must be positive, got %s", d), d)
	}
}

// NotEmpty checks value holds something other than whitespace.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf checks value is in allowed.
func (v *Validator) OneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

// Directory checks path is an existing directory, creating it unless mustExist.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.AddError(field, "directory path cannot be empty", path)
		return
	}
	if strings.Contains(path, "..") {
		v.AddError(field, "path contains traversal sequences (..)", path)
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid path: %v", err), path)
		return
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err) && mustExist:
		v.AddError(field, "directory does not exist", path)
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o750); err != nil {
			v.AddError(field, fmt.Sprintf("cannot create directory: %v", err), path)
		}
	case err != nil:
		v.AddError(field, fmt.Sprintf("cannot access directory: %v", err), path)
	case !info.IsDir():
		v.AddError(field, "path is not a directory", path)
	}
}
