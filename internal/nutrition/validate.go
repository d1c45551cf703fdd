// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package nutrition gates submission of the nutrition form: every present
// numeric field must hold a non-negative number or be blank.
package nutrition

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Visual markers applied to checked fields.
const (
	StyleValid   = "1px solid #42A475"
	StyleInvalid = "2px solid red"
)

// AggregateMessage is shown once when any field fails.
const AggregateMessage = "Please correct the highlighted fields. Only positive numbers are allowed."

// DefaultFields is the field set checked by the nutrition form.
var DefaultFields = []string{"sugar", "fat", "energy", "carbs", "protein"}

// Marker applies a visual marker to a named field.
type Marker interface {
	Mark(field, style string)
}

// MarkerFunc adapts a function to Marker.
type MarkerFunc func(field, style string)

// Mark implements Marker.
func (f MarkerFunc) Mark(field, style string) { f(field, style) }

// FieldResult is the outcome for one checked field.
type FieldResult struct {
	Field string `json:"field"`
	Valid bool   `json:"valid"`
	Style string `json:"style"`
}

// Values is the read-only view of submitted form values.
// Absent fields report ok=false.
type Values interface {
	Lookup(field string) (string, bool)
}

// MapValues adapts a map to Values.
type MapValues map[string]string

// Lookup implements Values.
func (m MapValues) Lookup(field string) (string, bool) {
	v, ok := m[field]
	return v, ok
}

// ValidateFields checks every field in fieldNames that is present in values.
// Each present field is first reset to StyleValid and flipped to StyleInvalid
// when it is non-blank and does not parse to a number >= 0. The returned bool
// is true iff no field failed. marker may be nil.
func ValidateFields(fieldNames []string, values Values, marker Marker) (bool, []FieldResult) {
	ok := true
	results := make([]FieldResult, 0, len(fieldNames))
	for _, name := range fieldNames {
		raw, present := values.Lookup(name)
		if !present {
			continue
		}
		if marker != nil {
			marker.Mark(name, StyleValid)
		}
		res := FieldResult{Field: name, Valid: true, Style: StyleValid}
		if !acceptable(raw) {
			ok = false
			res.Valid = false
			res.Style = StyleInvalid
			if marker != nil {
				marker.Mark(name, StyleInvalid)
			}
		}
		results = append(results, res)
	}
	return ok, results
}

// InvalidFields returns the names of failed fields in order.
func InvalidFields(results []FieldResult) []string {
	var out []string
	for _, r := range results {
		if !r.Valid {
			out = append(out, r.Field)
		}
	}
	return out
}

func acceptable(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	v, ok := ParseLeadingFloat(s)
	if !ok || math.IsNaN(v) {
		return false
	}
	return v >= 0
}

// ParseLeadingFloat parses the longest numeric prefix of s the way browsers
// parse form numbers: leading whitespace is skipped, trailing garbage is
// ignored ("12abc" is 12), and "Infinity" is accepted. It reports false when
// no prefix is numeric.
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	if s == "" {
		return 0, false
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	end := i
	// exponent only counts when followed by at least one digit
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	num := s[:end]
	if end == i && strings.HasSuffix(num, ".") {
		num = strings.TrimSuffix(num, ".")
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		// out of range still yields ±Inf or 0
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
