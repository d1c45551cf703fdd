// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
)

// MessageCameraUnavailable is shown when the camera path fails.
const MessageCameraUnavailable = "Camera cannot start."

// Config holds the fixed parameters of the capture workflow.
type Config struct {
	Stream      StreamConfig
	ReloadDelay time.Duration
	InputID     string // form input receiving the decoded value
	TryHarder   bool   // passed to image decoding
}

// DefaultConfig returns the scan configuration used by the web UI.
func DefaultConfig() Config {
	return Config{
		Stream: StreamConfig{
			FrameRate:       10,
			DetectionRegion: 200,
		},
		ReloadDelay: 3 * time.Second,
		InputID:     "barcode",
		TryHarder:   true,
	}
}

// DecodeFailureMessage is the multi-line message of the file path failure.
func DecodeFailureMessage(reloadDelay time.Duration) string {
	secs := int(reloadDelay.Round(time.Second) / time.Second)
	return fmt.Sprintf("❌ No barcode found in the image.\n🔄 Refreshing in %d seconds...", secs)
}

// RecoveryState is the user-facing state left behind by a failed session.
type RecoveryState struct {
	Message       string `json:"message"`
	ErrorStyle    bool   `json:"error_style"`
	ShowFallback  bool   `json:"show_fallback"`
	ReloadPending bool   `json:"reload_pending"`
}

// Deps are the injected collaborators of a Controller.
type Deps struct {
	Recognizer Recognizer
	Surface    Surface
	Form       Form
	Picker     FilePicker
	Reloader   Reloader
	Now        func() time.Time
}

// Controller owns the capture sessions of one page. State changes are
// serialised by mu; capability calls and form submission run outside it so
// that readers of the page never wait on a decode or a forward.
type Controller struct {
	cfg      Config
	rec      Recognizer
	surface  Surface
	form     Form
	picker   FilePicker
	reloader Reloader
	now      func() time.Time

	latest atomic.Pointer[Session]

	mu       sync.Mutex
	current  *Session
	recovery RecoveryState
	reload   Timer
	closed   bool
}

// New validates deps and returns a Controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	switch {
	case deps.Recognizer == nil:
		return nil, errors.New("capture: recognizer is required")
	case deps.Surface == nil:
		return nil, errors.New("capture: surface is required")
	case deps.Form == nil:
		return nil, errors.New("capture: form is required")
	case deps.Picker == nil:
		return nil, errors.New("capture: file picker is required")
	case deps.Reloader == nil:
		return nil, errors.New("capture: reloader is required")
	}
	if cfg.InputID == "" {
		cfg.InputID = DefaultConfig().InputID
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultConfig().ReloadDelay
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:      cfg,
		rec:      deps.Recognizer,
		surface:  deps.Surface,
		form:     deps.Form,
		picker:   deps.Picker,
		reloader: deps.Reloader,
		now:      now,
	}, nil
}

// StartCameraCapture starts a camera session on the first capture device.
// Capability failures end the session in StatusFailed with the camera
// recovery state; the returned error is only set when the controller is closed.
func (c *Controller) StartCameraCapture(ctx context.Context) (*Session, error) {
	sess, sctx, err := c.begin(ctx, ModalityCamera)
	if err != nil {
		return nil, err
	}
	logger := xglog.WithComponentFromContext(sctx, "capture")

	devices, err := c.listDevices(sctx)
	if err == nil && len(devices) == 0 {
		err = ErrNoDevices
	}
	if err != nil {
		c.settle(sctx, sess, outcome{err: fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)})
		return sess, nil
	}

	device := devices[0]
	logger.Debug().
		Str(xglog.FieldEvent, "capture.stream_start").
		Str(xglog.FieldDeviceID, device.ID).
		Int(xglog.FieldFPS, c.cfg.Stream.FrameRate).
		Int(xglog.FieldRegion, c.cfg.Stream.DetectionRegion).
		Msg("starting decode stream")

	sub, err := c.startStream(sctx, device.ID, func(text string) {
		sess.result.resolve(text, nil)
	})
	if err != nil {
		c.settle(sctx, sess, outcome{err: fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)})
		return sess, nil
	}
	if !sess.attach(sub) {
		// superseded while the stream was opening
		sub.Stop()
		return sess, nil
	}

	go c.watch(sctx, sess)
	return sess, nil
}

// StartFileCapture asks the page to open its file picker.
func (c *Controller) StartFileCapture(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.picker.OpenPicker()
	logger := xglog.WithComponentFromContext(ctx, "capture")
	logger.Debug().Str(xglog.FieldEvent, "capture.picker_requested").Msg("file picker requested")
}

// HandleFileSelected decodes the selected file. A nil file means the user
// cancelled the picker; nothing changes and a nil session is returned.
func (c *Controller) HandleFileSelected(ctx context.Context, file *File) (*Session, error) {
	if file == nil {
		return nil, nil
	}

	sess, sctx, err := c.begin(ctx, ModalityFile)
	if err != nil {
		return nil, err
	}

	text, err := c.decodeImage(sctx, *file)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	sess.result.resolve(text, err)
	c.settle(sctx, sess, <-sess.result.done())
	return sess, nil
}

// HandOffResult writes text into the form input and submits the form.
func (c *Controller) HandOffResult(ctx context.Context, text string) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.handOff(ctx, modalityDirect, text)
}

// ClearRecoveryState resets the message, error style and fallback indicator
// and cancels a pending reload. It is idempotent.
func (c *Controller) ClearRecoveryState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearRecoveryLocked()
}

// Recovery returns a snapshot of the recovery state.
func (c *Controller) Recovery() RecoveryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recovery
}

// Current returns the most recent session, or nil. It never blocks.
func (c *Controller) Current() *Session {
	return c.latest.Load()
}

// ResetIf discards all session state, as a page reload does, but only while
// t is still the pending reload of this controller. wipe runs under the
// controller lock so no session can start between the reset and the wipe.
// The reload timer is dropped without being counted as cancelled.
func (c *Controller) ResetIf(ctx context.Context, t Timer, wipe func()) bool {
	c.mu.Lock()
	if c.closed || t == nil || c.reload != t {
		c.mu.Unlock()
		return false
	}
	aborted := c.abortLocked(ctx, ErrSuperseded)
	c.reload = nil
	c.clearRecoveryLocked()
	c.setCurrentLocked(nil)
	if wipe != nil {
		wipe()
	}
	c.mu.Unlock()

	aborted.release()
	return true
}

// Close stops any active stream and rejects further sessions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	aborted := c.abortLocked(context.Background(), ErrClosed)
	if c.reload != nil {
		c.reload.Stop()
		c.reload = nil
	}
	c.mu.Unlock()

	aborted.release()
}

func (c *Controller) setCurrentLocked(s *Session) {
	c.current = s
	c.latest.Store(s)
}

// begin supersedes the active session, clears recovery state and starts a
// new session. Clearing always precedes any capability call.
func (c *Controller) begin(ctx context.Context, modality Modality) (*Session, context.Context, error) {
	c.mu.Lock()
	sess, sctx, aborted, err := c.beginLocked(ctx, modality)
	c.mu.Unlock()

	aborted.release()
	return sess, sctx, err
}

// beginLocked returns the superseded session, if any, for release once mu
// is dropped.
func (c *Controller) beginLocked(ctx context.Context, modality Modality) (*Session, context.Context, *Session, error) {
	if c.closed {
		return nil, nil, nil, ErrClosed
	}
	aborted := c.abortLocked(ctx, ErrSuperseded)
	c.clearRecoveryLocked()

	sess := newSession(modality, c.now())
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sctx = xglog.ContextWithSessionID(sctx, sess.ID)
	sess.cancel = cancel

	if _, err := sess.machine.Fire(sctx, evStart); err != nil {
		cancel()
		return nil, nil, aborted, err
	}
	c.setCurrentLocked(sess)

	logger := xglog.WithComponentFromContext(sctx, "capture")
	logger.Info().
		Str(xglog.FieldEvent, "capture.session_started").
		Str(xglog.FieldModality, string(modality)).
		Msg("capture session started")
	return sess, sctx, aborted, nil
}

// abortLocked terminates a still-active session without touching the UI.
// The caller releases the returned session after dropping mu.
func (c *Controller) abortLocked(ctx context.Context, cause error) *Session {
	prev := c.current
	if prev == nil || prev.Status().IsTerminal() {
		return nil
	}
	if _, err := prev.terminate(ctx, "", cause); err != nil {
		return nil
	}
	metrics.RecordCaptureOutcome(string(prev.Modality), string(StatusFailed), FailureKind(cause), c.now().Sub(prev.StartedAt))
	logger := xglog.WithComponentFromContext(xglog.ContextWithSessionID(ctx, prev.ID), "capture")
	logger.Debug().
		Str(xglog.FieldEvent, "capture.session_aborted").
		Str(xglog.FieldFailure, FailureKind(cause)).
		Msg("capture session aborted")
	return prev
}

// watch waits for the stream result of a camera session.
func (c *Controller) watch(ctx context.Context, sess *Session) {
	select {
	case o := <-sess.result.done():
		c.settle(ctx, sess, o)
	case <-sess.Done():
	}
}

// settle is the single completion path shared by both modalities. It is a
// no-op for a session that was superseded or already ended. The state
// change happens under mu; the hand-off runs after it is released.
func (c *Controller) settle(ctx context.Context, sess *Session, o outcome) {
	c.mu.Lock()
	if c.current != sess || sess.Status().IsTerminal() {
		c.mu.Unlock()
		return
	}
	to, err := sess.terminate(ctx, o.text, o.err)
	if err != nil {
		c.mu.Unlock()
		return
	}

	elapsed := c.now().Sub(sess.StartedAt)
	metrics.RecordCaptureOutcome(string(sess.Modality), string(to), FailureKind(o.err), elapsed)

	logger := xglog.WithComponentFromContext(ctx, "capture")
	if o.err != nil {
		logger.Warn().
			Err(o.err).
			Str(xglog.FieldEvent, "capture.session_failed").
			Str(xglog.FieldModality, string(sess.Modality)).
			Str(xglog.FieldFailure, FailureKind(o.err)).
			Msg("capture session failed")
		c.failLocked(o.err)
	}
	c.mu.Unlock()

	defer sess.release()
	if o.err != nil {
		return
	}
	logger.Info().
		Str(xglog.FieldEvent, "capture.session_succeeded").
		Str(xglog.FieldModality, string(sess.Modality)).
		Dur("elapsed", elapsed).
		Msg("barcode decoded")
	c.handOff(context.WithoutCancel(ctx), sess.Modality, o.text)
}

func (c *Controller) failLocked(err error) {
	switch {
	case errors.Is(err, ErrDecodeFailure):
		c.recovery.Message = DecodeFailureMessage(c.cfg.ReloadDelay)
		c.recovery.ErrorStyle = true
		c.recovery.ShowFallback = true
		c.surface.SetMessage(c.recovery.Message)
		c.surface.SetErrorStyle(true)
		c.surface.ShowFallback()

		c.reload = c.reloader.ScheduleReload(c.cfg.ReloadDelay)
		c.recovery.ReloadPending = true
		metrics.RecordReload("scheduled")

	case errors.Is(err, ErrDeviceUnavailable):
		c.recovery.Message = MessageCameraUnavailable
		c.recovery.ErrorStyle = true
		c.recovery.ShowFallback = true
		c.surface.SetMessage(c.recovery.Message)
		c.surface.SetErrorStyle(true)
		c.surface.ShowFallback()
	}
}

func (c *Controller) handOff(ctx context.Context, modality Modality, text string) {
	ctx = context.WithValue(ctx, modalityKey{}, modality)
	c.form.SetValue(c.cfg.InputID, text)
	err := c.form.Submit(ctx)
	metrics.RecordHandOff(string(modality), err == nil)

	logger := xglog.WithComponentFromContext(ctx, "capture")
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "capture.handoff_failed").
			Msg("form submission failed after hand-off")
		return
	}
	logger.Debug().
		Str(xglog.FieldEvent, "capture.handoff").
		Str(xglog.FieldModality, string(modality)).
		Msg("decoded value handed off to form")
}

func (c *Controller) clearRecoveryLocked() {
	if c.reload != nil {
		if c.reload.Stop() {
			metrics.RecordReload("cancelled")
		}
		c.reload = nil
	}
	c.recovery = RecoveryState{}
	c.surface.SetMessage("")
	c.surface.SetErrorStyle(false)
	c.surface.HideFallback()
}

func (c *Controller) listDevices(ctx context.Context) (devices []Device, err error) {
	defer recoverInto(&err)
	return c.rec.ListCaptureDevices(ctx)
}

func (c *Controller) startStream(ctx context.Context, deviceID string, onDecoded func(string)) (sub Subscription, err error) {
	defer recoverInto(&err)
	return c.rec.StartStream(ctx, deviceID, c.cfg.Stream, onDecoded)
}

func (c *Controller) decodeImage(ctx context.Context, file File) (text string, err error) {
	defer recoverInto(&err)
	return c.rec.DecodeImage(ctx, file, c.cfg.TryHarder)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = &panicError{value: r}
	}
}
