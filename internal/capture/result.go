// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import "sync"

// outcome is the single result of one session.
type outcome struct {
	text string
	err  error
}

// result is a single-resolution future. The first resolve wins.
type result struct {
	once sync.Once
	ch   chan outcome
}

func newResult() *result {
	return &result{ch: make(chan outcome, 1)}
}

// resolve reports whether this call set the outcome.
func (r *result) resolve(text string, err error) bool {
	won := false
	r.once.Do(func() {
		r.ch <- outcome{text: text, err: err}
		won = true
	})
	return won
}

func (r *result) done() <-chan outcome {
	return r.ch
}
