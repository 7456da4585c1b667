// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session provides the resumable handle a caller holds across
// a workflow's suspend/resume boundary.
//
// A Session owns one pipeline run, its transcript snapshot, the
// outstanding pending request (if any) and an append-only event log.
// Lifecycle:
//
//	created empty → Start(input) advances until Suspend or Emit
//	→ if suspended, SubmitDecision(requestID, decision) exactly once
//	→ terminal on Emit (result) or on failure
//
// Sessions serialize access: at most one Start/SubmitDecision call is
// in flight at a time, and overlapping calls are rejected with
// ErrConcurrentAccess rather than interleaved. Different sessions are
// fully independent and may run in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice. The
	// rejected call leaves state and log untouched.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNoPendingRequest is returned when SubmitDecision is called
	// while no request is outstanding.
	ErrNoPendingRequest = errors.New("no pending request")

	// ErrAlreadyResumed is returned when a decision is submitted twice
	// for the same request.
	ErrAlreadyResumed = errors.New("request already resumed")

	// ErrUnknownRequest is returned when the submitted request id does
	// not match the outstanding request.
	ErrUnknownRequest = errors.New("unknown request id")

	// ErrInvalidState is returned when a method is called on a
	// terminal session.
	ErrInvalidState = errors.New("session is terminal")

	// ErrConcurrentAccess is returned when Start/SubmitDecision calls
	// overlap on one session.
	ErrConcurrentAccess = errors.New("concurrent session access")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStageObserver forwards per-stage durations to the given callback
// (used to feed metrics).
func WithStageObserver(observe func(stage string, round int, d time.Duration)) Option {
	return func(s *Session) {
		s.observe = observe
	}
}

// Session is a single resumable workflow run.
type Session struct {
	id     string
	mu     sync.Mutex
	run    *pipeline.Run
	logger *slog.Logger

	started  bool
	events   []pipeline.Event
	consumed map[string]bool
	observe  func(stage string, round int, d time.Duration)
}

// New creates a session for one run of the given pipeline.
func New(p *pipeline.Pipeline, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		consumed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	runOpts := []pipeline.RunOption{pipeline.WithEmitter(s.appendEvent)}
	if s.observe != nil {
		runOpts = append(runOpts, pipeline.WithStageObserver(s.observe))
	}
	s.run = p.NewRun(runOpts...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the run's lifecycle state.
func (s *Session) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.State()
}

// Pending returns the outstanding request, or nil.
func (s *Session) Pending() *pipeline.PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.Pending()
}

// Result returns the final output and true once the run has completed.
func (s *Session) Result() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.Result()
}

// Events returns a copy of the full event log in production order.
// The log is append-only; re-reading it after completion yields the
// same sequence that was produced incrementally.
func (s *Session) Events() []pipeline.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Event(nil), s.events...)
}

// Start constructs the initial transcript from the input and drives
// the pipeline until it suspends, completes, or fails. It returns the
// events produced by this call, including the suspend or output event
// that stopped it. On failure the session is terminal and the stage
// error is returned alongside the events produced so far.
func (s *Session) Start(ctx context.Context, input string) ([]pipeline.Event, error) {
	if !s.mu.TryLock() {
		return nil, ErrConcurrentAccess
	}
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true

	s.logger.Info("session starting", "session_id", s.id)

	mark := len(s.events)
	err := s.run.Start(ctx, chat.NewTranscript(chat.User(input)))
	batch := append([]pipeline.Event(nil), s.events[mark:]...)
	if err != nil {
		s.logger.Error("session run failed", "session_id", s.id, "error", err)
		return batch, err
	}

	s.logger.Info("session yielded", "session_id", s.id, "state", string(s.run.State()))
	return batch, nil
}

// SubmitDecision consumes the outstanding request identified by
// requestID, folds the decision into the preserved transcript and
// resumes the pipeline at the gate's successor. It returns the events
// produced by the resumed segment.
func (s *Session) SubmitDecision(ctx context.Context, requestID, decision string) ([]pipeline.Event, error) {
	if !s.mu.TryLock() {
		return nil, ErrConcurrentAccess
	}
	defer s.mu.Unlock()

	if s.consumed[requestID] {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResumed, requestID)
	}
	if s.run.State().Terminal() {
		return nil, fmt.Errorf("%w (state %s)", ErrInvalidState, s.run.State())
	}
	pending := s.run.Pending()
	if pending == nil {
		return nil, ErrNoPendingRequest
	}
	if requestID != pending.ID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	s.consumed[requestID] = true

	s.logger.Info("session resuming", "session_id", s.id, "request_id", requestID)

	mark := len(s.events)
	err := s.run.Resume(ctx, decision)
	batch := append([]pipeline.Event(nil), s.events[mark:]...)
	if err != nil {
		s.logger.Error("session run failed", "session_id", s.id, "error", err)
		return batch, err
	}

	s.logger.Info("session yielded", "session_id", s.id, "state", string(s.run.State()))
	return batch, nil
}

// appendEvent is the run's emitter; it executes on the goroutine
// driving Start/SubmitDecision, which already holds the session lock.
func (s *Session) appendEvent(event pipeline.Event) {
	s.events = append(s.events, event)
}
