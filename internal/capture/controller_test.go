// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newHarness(t *testing.T, rec *fakeRecognizer) *harness {
	t.Helper()
	h := &harness{
		rec:      rec,
		surface:  &fakeSurface{},
		form:     &fakeForm{},
		picker:   &fakePicker{},
		reloader: &fakeReloader{},
	}
	ctrl, err := New(DefaultConfig(), Deps{
		Recognizer: h.rec,
		Surface:    h.surface,
		Form:       h.form,
		Picker:     h.picker,
		Reloader:   h.reloader,
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not reach a terminal state (status=%s)", sess.ID, sess.Status())
	}
}

func failingDecode(File, bool) (string, error) { return "", errors.New("no multiformat readers found") }

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	require.Error(t, err)
}

func TestCamera_SuccessHandsOffOnce(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{devices: []Device{{ID: "cam0"}}})

	sess, err := h.ctrl.StartCameraCapture(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusActive, sess.Status())
	require.Equal(t, []string{"cam0"}, h.rec.startCalls)
	require.Equal(t, StreamConfig{FrameRate: 10, DetectionRegion: 200}, h.rec.streamCfgs[0])

	stream := h.rec.stream(0)
	stream.emit("012345678905")
	stream.emit("999999999999") // later frames are ignored
	waitDone(t, sess)

	value, submits := h.form.state("barcode")
	assert.Equal(t, "012345678905", value)
	assert.Equal(t, 1, submits)
	assert.Equal(t, StatusSucceeded, sess.Status())

	decoded, ok := sess.DecodedValue()
	assert.True(t, ok)
	assert.Equal(t, "012345678905", decoded)

	msg, errStyle, fallback := h.surface.snapshot()
	assert.Empty(t, msg)
	assert.False(t, errStyle)
	assert.False(t, fallback)
	assert.Equal(t, 1, stream.stopCount())
}

func TestCamera_NoDevicesFailsWithoutStream(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{})

	sess, err := h.ctrl.StartCameraCapture(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFailed, sess.Status())
	require.ErrorIs(t, sess.Err(), ErrDeviceUnavailable)
	require.ErrorIs(t, sess.Err(), ErrNoDevices)
	require.Empty(t, h.rec.startCalls)

	msg, errStyle, fallback := h.surface.snapshot()
	assert.Equal(t, MessageCameraUnavailable, msg)
	assert.True(t, errStyle)
	assert.True(t, fallback)
	assert.Empty(t, h.reloader.scheduled(), "camera failures never reload")

	rs := h.ctrl.Recovery()
	assert.Equal(t, RecoveryState{Message: MessageCameraUnavailable, ErrorStyle: true, ShowFallback: true}, rs)
}

func TestCamera_CapabilityFailures(t *testing.T) {
	tests := []struct {
		name string
		rec  *fakeRecognizer
	}{
		{name: "list error", rec: &fakeRecognizer{listErr: errors.New("NotAllowedError")}},
		{name: "list panic", rec: &fakeRecognizer{listPanic: "permission denied"}},
		{name: "start rejected", rec: &fakeRecognizer{devices: []Device{{ID: "cam0"}}, startErr: errors.New("device busy")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.rec)
			sess, err := h.ctrl.StartCameraCapture(context.Background())
			require.NoError(t, err)
			require.Equal(t, StatusFailed, sess.Status())
			require.ErrorIs(t, sess.Err(), ErrDeviceUnavailable)
			require.Equal(t, FailureDeviceUnavailable, FailureKind(sess.Err()))

			msg, _, fallback := h.surface.snapshot()
			assert.Equal(t, MessageCameraUnavailable, msg)
			assert.True(t, fallback)
			_, submits := h.form.state("barcode")
			assert.Zero(t, submits)
		})
	}
}

func TestFile_CancelIsNoop(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{devices: nil})
	_, _ = h.ctrl.StartCameraCapture(context.Background())
	before := h.ctrl.Recovery()

	sess, err := h.ctrl.HandleFileSelected(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, before, h.ctrl.Recovery())
	require.Zero(t, h.rec.decodeCalls)
}

func TestFile_Success(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: func(f File, tryHarder bool) (string, error) {
		if !tryHarder {
			return "", errors.New("expected tryHarder")
		}
		return "4006381333931", nil
	}})

	sess, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "photo.jpg", Data: []byte{1}})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, sess.Status())

	value, submits := h.form.state("barcode")
	assert.Equal(t, "4006381333931", value)
	assert.Equal(t, 1, submits)
	assert.Equal(t, ModalityFile, h.form.modality)
	assert.Empty(t, h.reloader.scheduled())
}

func TestFile_DecodeFailureSchedulesReload(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: failingDecode})

	sess, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "blank.png"})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, sess.Status())
	require.ErrorIs(t, sess.Err(), ErrDecodeFailure)

	msg, errStyle, fallback := h.surface.snapshot()
	assert.Contains(t, msg, "No barcode found")
	assert.Contains(t, msg, "Refreshing in 3 seconds")
	assert.Len(t, strings.Split(msg, "\n"), 2)
	assert.True(t, errStyle)
	assert.True(t, fallback)

	timers := h.reloader.scheduled()
	require.Len(t, timers, 1)
	assert.Equal(t, 3000*time.Millisecond, timers[0].delay)
	assert.True(t, h.ctrl.Recovery().ReloadPending)
}

func TestFile_DecodePanicIsDecodeFailure(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: func(File, bool) (string, error) { panic("corrupt image") }})

	sess, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "x.png"})
	require.NoError(t, err)
	require.ErrorIs(t, sess.Err(), ErrDecodeFailure)
	require.Len(t, h.reloader.scheduled(), 1)
}

func TestNewSessionClearsPriorFailureAndCancelsReload(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: failingDecode, devices: []Device{{ID: "cam0"}}})

	for n := 0; n < 3; n++ {
		_, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "bad.png"})
		require.NoError(t, err)
		msg, errStyle, fallback := h.surface.snapshot()
		require.NotEmpty(t, msg)
		require.True(t, errStyle)
		require.True(t, fallback)

		sess, err := h.ctrl.StartCameraCapture(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatusActive, sess.Status())

		msg, errStyle, fallback = h.surface.snapshot()
		require.Empty(t, msg, "session %d must start with a clean surface", n+1)
		require.False(t, errStyle)
		require.False(t, fallback)
		require.False(t, h.ctrl.Recovery().ReloadPending)
	}

	for _, tm := range h.reloader.scheduled() {
		assert.True(t, tm.stopped, "pending reload must be cancelled by the next session")
	}
}

func TestSupersededStreamResultIsIgnored(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{devices: []Device{{ID: "cam0"}}})

	first, err := h.ctrl.StartCameraCapture(context.Background())
	require.NoError(t, err)
	second, err := h.ctrl.StartCameraCapture(context.Background())
	require.NoError(t, err)

	waitDone(t, first)
	require.ErrorIs(t, first.Err(), ErrSuperseded)
	require.Equal(t, 1, h.rec.stream(0).stopCount())

	h.rec.stream(0).emit("stale")
	h.rec.stream(1).emit("fresh")
	waitDone(t, second)

	value, submits := h.form.state("barcode")
	require.Equal(t, "fresh", value)
	require.Equal(t, 1, submits)
}

func TestHandOffResult_ExactValue(t *testing.T) {
	long := strings.Repeat("9", 4096)
	for _, s := range []string{"", "héllo-ünïcode-✓", long, "012345678905"} {
		h := newHarness(t, &fakeRecognizer{})
		h.ctrl.HandOffResult(context.Background(), s)
		value, submits := h.form.state("barcode")
		require.Equal(t, s, value)
		require.Equal(t, 1, submits)
	}
}

func TestHandOffSubmitErrorKeepsSucceeded(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: func(File, bool) (string, error) { return "123", nil }})
	h.form.submitErr = errors.New("form gone")

	sess, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "ok.png"})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, sess.Status())
}

func TestClearRecoveryStateIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{})
	_, _ = h.ctrl.StartCameraCapture(context.Background())

	h.ctrl.ClearRecoveryState()
	h.ctrl.ClearRecoveryState()

	require.Equal(t, RecoveryState{}, h.ctrl.Recovery())
	msg, errStyle, fallback := h.surface.snapshot()
	require.Empty(t, msg)
	require.False(t, errStyle)
	require.False(t, fallback)
}

func TestStartFileCaptureOpensPicker(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{})
	h.ctrl.StartFileCapture(context.Background())
	require.Equal(t, 1, h.picker.opened)
	require.Nil(t, h.ctrl.Current())
}

func TestResetIfDropsReloadWithoutCancelling(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: failingDecode})
	_, _ = h.ctrl.HandleFileSelected(context.Background(), &File{Name: "bad.png"})
	timer := h.reloader.scheduled()[0]

	wiped := 0
	require.True(t, h.ctrl.ResetIf(context.Background(), timer, func() { wiped++ }))

	require.Equal(t, 1, wiped)
	require.Equal(t, RecoveryState{}, h.ctrl.Recovery())
	require.Nil(t, h.ctrl.Current())
	require.False(t, timer.stopped)
}

func TestResetIfIgnoresStaleTimer(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{decode: func(f File, _ bool) (string, error) {
		if f.Name == "bad.png" {
			return "", errors.New("no barcode")
		}
		return "123", nil
	}})
	ctx := context.Background()
	_, _ = h.ctrl.HandleFileSelected(ctx, &File{Name: "bad.png"})
	stale := h.reloader.scheduled()[0]

	sess, err := h.ctrl.HandleFileSelected(ctx, &File{Name: "ok.png"})
	require.NoError(t, err)

	wiped := false
	require.False(t, h.ctrl.ResetIf(ctx, stale, func() { wiped = true }))
	require.False(t, wiped)
	require.Same(t, sess, h.ctrl.Current())
	require.Equal(t, StatusSucceeded, sess.Status())
}

func TestCurrentDoesNotWaitOnDecode(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{})
	unblock := make(chan struct{})
	h := newHarness(t, &fakeRecognizer{decode: func(File, bool) (string, error) {
		close(entered)
		<-unblock
		return "123", nil
	}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.ctrl.HandleFileSelected(context.Background(), &File{Name: "slow.png"})
	}()
	<-entered

	polled := make(chan Status, 1)
	go func() {
		_ = h.ctrl.Recovery()
		polled <- h.ctrl.Current().Status()
	}()
	select {
	case st := <-polled:
		require.Equal(t, StatusActive, st)
	case <-time.After(time.Second):
		t.Fatal("controller state blocked behind an in-flight decode")
	}

	close(unblock)
	<-done
}

func TestCurrentDoesNotWaitOnSubmit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{})
	unblock := make(chan struct{})
	h := newHarness(t, &fakeRecognizer{decode: func(File, bool) (string, error) { return "123", nil }})
	h.form.onSubmit = func() {
		close(entered)
		<-unblock
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.ctrl.HandleFileSelected(context.Background(), &File{Name: "ok.png"})
	}()
	<-entered

	polled := make(chan Status, 1)
	go func() {
		_ = h.ctrl.Recovery()
		polled <- h.ctrl.Current().Status()
	}()
	select {
	case st := <-polled:
		require.Equal(t, StatusSucceeded, st)
	case <-time.After(time.Second):
		t.Fatal("controller state blocked behind a form submission")
	}

	close(unblock)
	<-done
}

func TestStreamOpenedAfterSupersedeIsStopped(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	rec := &fakeRecognizer{
		devices: []Device{{ID: "cam0"}},
		decode:  func(File, bool) (string, error) { return "123", nil },
		onStart: func() {
			close(entered)
			<-unblock
		},
	}
	h := newHarness(t, rec)

	type started struct {
		sess *Session
		err  error
	}
	camera := make(chan started, 1)
	go func() {
		sess, err := h.ctrl.StartCameraCapture(context.Background())
		camera <- started{sess, err}
	}()
	<-entered

	file, err := h.ctrl.HandleFileSelected(context.Background(), &File{Name: "ok.png"})
	require.NoError(t, err)
	close(unblock)

	got := <-camera
	require.NoError(t, got.err)
	waitDone(t, got.sess)
	require.ErrorIs(t, got.sess.Err(), ErrSuperseded)
	require.Equal(t, 1, rec.stream(0).stopCount())
	require.Same(t, file, h.ctrl.Current())
}

func TestClosedControllerRejectsSessions(t *testing.T) {
	h := newHarness(t, &fakeRecognizer{devices: []Device{{ID: "cam0"}}})
	sess, err := h.ctrl.StartCameraCapture(context.Background())
	require.NoError(t, err)

	h.ctrl.Close()
	waitDone(t, sess)
	require.ErrorIs(t, sess.Err(), ErrClosed)

	_, err = h.ctrl.StartCameraCapture(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	_, err = h.ctrl.HandleFileSelected(context.Background(), &File{})
	require.ErrorIs(t, err, ErrClosed)
}
