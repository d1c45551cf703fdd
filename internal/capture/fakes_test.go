// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"sync"
	"time"
)

type fakeRecognizer struct {
	mu        sync.Mutex
	devices   []Device
	listErr   error
	listPanic any
	startErr  error
	decode    func(File, bool) (string, error)
	onStart   func()

	listCalls   int
	startCalls  []string
	streamCfgs  []StreamConfig
	decodeCalls int
	streams     []*fakeStream
}

func (f *fakeRecognizer) ListCaptureDevices(context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listPanic != nil {
		panic(f.listPanic)
	}
	return f.devices, f.listErr
}

func (f *fakeRecognizer) StartStream(_ context.Context, deviceID string, cfg StreamConfig, onDecoded func(string)) (Subscription, error) {
	if f.onStart != nil {
		f.onStart()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, deviceID)
	f.streamCfgs = append(f.streamCfgs, cfg)
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := &fakeStream{onDecoded: onDecoded}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeRecognizer) DecodeImage(_ context.Context, file File, tryHarder bool) (string, error) {
	f.mu.Lock()
	f.decodeCalls++
	decode := f.decode
	f.mu.Unlock()
	return decode(file, tryHarder)
}

func (f *fakeRecognizer) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type fakeStream struct {
	mu        sync.Mutex
	onDecoded func(string)
	stopped   int
}

func (s *fakeStream) emit(text string) { s.onDecoded(text) }

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeSurface struct {
	mu       sync.Mutex
	message  string
	errStyle bool
	fallback bool
	calls    []string
}

func (s *fakeSurface) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
	s.calls = append(s.calls, "message")
}

func (s *fakeSurface) SetErrorStyle(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errStyle = on
}

func (s *fakeSurface) ShowFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = true
}

func (s *fakeSurface) HideFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = false
}

func (s *fakeSurface) snapshot() (string, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message, s.errStyle, s.fallback
}

type fakeForm struct {
	mu        sync.Mutex
	values    map[string]string
	submits   int
	submitErr error
	modality  Modality
	onSubmit  func()
}

func (f *fakeForm) SetValue(id, v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[id] = v
}

func (f *fakeForm) Submit(ctx context.Context) error {
	if f.onSubmit != nil {
		f.onSubmit()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.modality = ModalityFromContext(ctx)
	return f.submitErr
}

func (f *fakeForm) state(id string) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[id], f.submits
}

type fakePicker struct{ opened int }

func (p *fakePicker) OpenPicker() { p.opened++ }

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeReloader struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (r *fakeReloader) ScheduleReload(after time.Duration) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTimer{delay: after}
	r.timers = append(r.timers, t)
	return t
}

func (r *fakeReloader) scheduled() []*fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeTimer(nil), r.timers...)
}

type harness struct {
	rec      *fakeRecognizer
	surface  *fakeSurface
	form     *fakeForm
	picker   *fakePicker
	reloader *fakeReloader
	ctrl     *Controller
}
