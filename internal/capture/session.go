// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/fsm"
	"github.com/google/uuid"
)

// Modality is the input channel of a session.
type Modality string

const (
	ModalityCamera Modality = "camera"
	ModalityFile   Modality = "file"

	// modalityDirect labels hand-offs that bypass a session.
	modalityDirect Modality = "direct"
)

type modalityKey struct{}

// ModalityFromContext returns the modality of the session whose result is
// being handed off, as seen by Form.Submit.
func ModalityFromContext(ctx context.Context) Modality {
	m, _ := ctx.Value(modalityKey{}).(Modality)
	return m
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusActive    Status = "active"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type sessionEvent string

const (
	evStart   sessionEvent = "start"
	evDecoded sessionEvent = "decoded"
	evFail    sessionEvent = "fail"
)

var sessionTransitions = []fsm.Transition[Status, sessionEvent]{
	{From: StatusIdle, Event: evStart, To: StatusActive},
	{From: StatusActive, Event: evDecoded, To: StatusSucceeded},
	{From: StatusActive, Event: evFail, To: StatusFailed},
}

// Session is one attempt to obtain a barcode value.
type Session struct {
	ID        string
	Modality  Modality
	StartedAt time.Time

	machine *fsm.Machine[Status, sessionEvent]
	result  *result
	cancel  context.CancelFunc
	done    chan struct{}

	finishOnce sync.Once

	mu      sync.Mutex
	decoded string
	err     error
	sub     Subscription
}

func newSession(modality Modality, now time.Time) *Session {
	m, err := fsm.New(StatusIdle, sessionTransitions)
	if err != nil {
		// The transition table is static.
		panic(err)
	}
	return &Session{
		ID:        uuid.NewString(),
		Modality:  modality,
		StartedAt: now,
		machine:   m,
		result:    newResult(),
		done:      make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	return s.machine.State()
}

// DecodedValue is set only once the session succeeded.
func (s *Session) DecodedValue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status() != StatusSucceeded {
		return "", false
	}
	return s.decoded, true
}

// Err returns the failure cause of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session is terminal and its hand-off or recovery
// side effects have been applied.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// attach binds the decode stream to the session. It refuses once the
// session is terminal; the caller then owns sub and must stop it.
func (s *Session) attach(sub Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status().IsTerminal() {
		return false
	}
	s.sub = sub
	return true
}

// terminate moves the session to its terminal state.
func (s *Session) terminate(ctx context.Context, text string, err error) (Status, error) {
	ev := evDecoded
	if err != nil {
		ev = evFail
	}
	s.mu.Lock()
	to, ferr := s.machine.Fire(ctx, ev)
	if ferr != nil {
		s.mu.Unlock()
		return to, ferr
	}
	if err != nil {
		s.err = err
	} else {
		s.decoded = text
	}
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return to, nil
}

// release stops the decode stream, if any, and closes Done. It is called
// after the terminal transition, outside the controller lock. Safe on nil.
func (s *Session) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
	s.finishOnce.Do(func() { close(s.done) })
}
