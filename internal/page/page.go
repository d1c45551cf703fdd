// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package page holds the server-side view of one browser page: its output
// surface, host form, file picker and reload timer. Each page owns one
// capture controller; the browser polls State and mirrors it into the DOM.
package page

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/capture"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/rs/zerolog"
)

// SessionView is the public state of the page's latest capture session.
type SessionView struct {
	ID       string `json:"id"`
	Modality string `json:"modality"`
	Status   string `json:"status"`
	Value    string `json:"value,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

// State is the observable output surface of a page.
type State struct {
	ID               string            `json:"id"`
	Message          string            `json:"message"`
	ErrorStyle       bool              `json:"errorStyle"`
	ShowFallback     bool              `json:"showFallback"`
	PickerRequests   int               `json:"pickerRequests"`
	Form             map[string]string `json:"form"`
	Submissions      int               `json:"submissions"`
	LastSubmitted    string            `json:"lastSubmitted,omitempty"`
	ReloadGeneration int               `json:"reloadGeneration"`
	ReloadAt         *time.Time        `json:"reloadAt,omitempty"`
	Session          *SessionView      `json:"session,omitempty"`
}

// Page implements the capture surface, form, file picker and reloader for
// one browser page.
type Page struct {
	id     string
	ctrl   *capture.Controller
	sinks  []Sink
	logger zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	mu         sync.Mutex
	message    string
	errorStyle bool
	fallback   bool
	picker     int
	form       map[string]string
	lastInput  string
	submits    int
	lastValue  string
	generation int
	reloadAt   time.Time
	pending    *reloadTimer
	closed     bool
}

var (
	_ capture.Surface    = (*Page)(nil)
	_ capture.Form       = (*Page)(nil)
	_ capture.FilePicker = (*Page)(nil)
	_ capture.Reloader   = (*Page)(nil)
)

// New creates a page and its capture controller. Submissions are passed to
// sinks in order.
func New(id string, cfg capture.Config, rec capture.Recognizer, sinks ...Sink) (*Page, error) {
	p := &Page{
		id:        id,
		sinks:     sinks,
		logger:    xglog.WithComponent("page").With().Str(xglog.FieldPageID, id).Logger(),
		now:       time.Now,
		afterFunc: time.AfterFunc,
		form:      map[string]string{},
	}
	ctrl, err := capture.New(cfg, capture.Deps{
		Recognizer: rec,
		Surface:    p,
		Form:       p,
		Picker:     p,
		Reloader:   p,
	})
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", id, err)
	}
	p.ctrl = ctrl
	return p, nil
}

// ID returns the page id.
func (p *Page) ID() string { return p.id }

// Controller returns the page's capture controller.
func (p *Page) Controller() *capture.Controller { return p.ctrl }

// Context returns ctx annotated with the page id for logging.
func (p *Page) Context(ctx context.Context) context.Context {
	return xglog.ContextWithPageID(ctx, p.id)
}

// State returns a snapshot of the page.
func (p *Page) State() State {
	// Current is lock-free; a decode or a forward in flight never stalls this.
	var view *SessionView
	if sess := p.ctrl.Current(); sess != nil {
		view = &SessionView{
			ID:       sess.ID,
			Modality: string(sess.Modality),
			Status:   string(sess.Status()),
			Failure:  capture.FailureKind(sess.Err()),
		}
		view.Value, _ = sess.DecodedValue()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	st := State{
		ID:               p.id,
		Message:          p.message,
		ErrorStyle:       p.errorStyle,
		ShowFallback:     p.fallback,
		PickerRequests:   p.picker,
		Form:             maps.Clone(p.form),
		Submissions:      p.submits,
		LastSubmitted:    p.lastValue,
		ReloadGeneration: p.generation,
		Session:          view,
	}
	if p.pending != nil {
		at := p.reloadAt
		st.ReloadAt = &at
	}
	return st
}

// SetMessage implements capture.Surface.
func (p *Page) SetMessage(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

// SetErrorStyle implements capture.Surface.
func (p *Page) SetErrorStyle(on bool) {
	p.mu.Lock()
	p.errorStyle = on
	p.mu.Unlock()
}

// ShowFallback implements capture.Surface.
func (p *Page) ShowFallback() {
	p.mu.Lock()
	p.fallback = true
	p.mu.Unlock()
}

// HideFallback implements capture.Surface.
func (p *Page) HideFallback() {
	p.mu.Lock()
	p.fallback = false
	p.mu.Unlock()
}

// OpenPicker implements capture.FilePicker. The browser opens its native
// selector when it sees the counter change.
func (p *Page) OpenPicker() {
	p.mu.Lock()
	p.picker++
	p.mu.Unlock()
}

// SetValue implements capture.Form.
func (p *Page) SetValue(inputID, value string) {
	p.mu.Lock()
	p.form[inputID] = value
	p.lastInput = inputID
	p.mu.Unlock()
}

// Submit implements capture.Form. The submission is counted before the
// sinks run; their errors are joined.
func (p *Page) Submit(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("page closed")
	}
	p.submits++
	sub := Submission{
		PageID:   p.id,
		Modality: string(capture.ModalityFromContext(ctx)),
		InputID:  p.lastInput,
		Value:    p.form[p.lastInput],
		Values:   maps.Clone(p.form),
		At:       p.now(),
	}
	p.lastValue = sub.Value
	p.mu.Unlock()

	var errs []error
	for _, s := range p.sinks {
		if err := s.Accept(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ScheduleReload implements capture.Reloader. When the timer fires the
// controller is reset, every field is cleared and the reload generation
// advances so the browser reloads.
func (p *Page) ScheduleReload(after time.Duration) capture.Timer {
	rt := &reloadTimer{page: p}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.cancelled = true
		p.pending.timer.Stop()
	}
	p.pending = rt
	p.reloadAt = p.now().Add(after)
	rt.timer = p.afterFunc(after, rt.fire)
	return rt
}

// Close stops the controller and any pending reload.
func (p *Page) Close() {
	p.ctrl.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.pending != nil {
		p.pending.cancelled = true
		p.pending.timer.Stop()
		p.pending = nil
	}
}

type reloadTimer struct {
	page  *Page
	timer *time.Timer

	// guarded by page.mu
	fired     bool
	cancelled bool
}

// Stop reports false once the reload has fired or was already stopped.
func (t *reloadTimer) Stop() bool {
	p := t.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	if p.pending == t {
		p.pending = nil
	}
	return true
}

func (t *reloadTimer) fire() {
	p := t.page
	p.mu.Lock()
	if t.cancelled || p.closed {
		p.mu.Unlock()
		return
	}
	t.fired = true
	p.mu.Unlock()

	var gen int
	ctx := p.Context(context.Background())
	wiped := p.ctrl.ResetIf(ctx, t, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.message = ""
		p.errorStyle = false
		p.fallback = false
		p.picker = 0
		p.form = map[string]string{}
		p.lastInput = ""
		p.submits = 0
		p.lastValue = ""
		p.generation++
		gen = p.generation
	})

	p.mu.Lock()
	if p.pending == t {
		p.pending = nil
	}
	p.mu.Unlock()
	if !wiped {
		// a newer session took over before the reload ran
		p.logger.Debug().
			Str(xglog.FieldEvent, "page.reload_skipped").
			Msg("reload superseded")
		return
	}

	metrics.RecordReload("fired")
	p.logger.Info().
		Str(xglog.FieldEvent, "page.reloaded").
		Int("generation", gen).
		Msg("page reloaded")
}
