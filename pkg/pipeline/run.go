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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/gateflow/pkg/chat"
)

// State is the run's position in the lifecycle state machine.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateSuspended State = "suspended"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// validTransitions is the run state machine. Completed and Failed have
// no outgoing edges.
var validTransitions = map[State][]State{
	StateCreated:   {StateRunning},
	StateRunning:   {StateSuspended, StateCompleted, StateFailed},
	StateSuspended: {StateRunning},
}

// EventKind classifies run events.
type EventKind string

const (
	// EventStatus marks a run state transition.
	EventStatus EventKind = "status"

	// EventProgress marks a stage that forwarded. Group-chat turns are
	// progress events carrying the stage's reply and round number.
	EventProgress EventKind = "progress"

	// EventSuspend marks a suspension and carries the pending request.
	EventSuspend EventKind = "suspend"

	// EventOutput carries the run's final result.
	EventOutput EventKind = "output"
)

// Event is an immutable record appended to the run's log at each stage
// transition. Events exist for observability and the caller's UI; they
// are never read back by the executor.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`

	// Stage is the stage that produced the event, or "workflow" for
	// run-level status events.
	Stage string `json:"stage"`

	// Round is the 1-based group-chat round, 0 otherwise.
	Round int `json:"round,omitempty"`

	Content string `json:"content,omitempty"`

	// Request is set on suspend events.
	Request *PendingRequest `json:"request,omitempty"`

	// ErrorMessage is set on the terminal status event of a failed run.
	ErrorMessage string `json:"error_message,omitempty"`
}

const eventStageWorkflow = "workflow"

// StageError reports a fatal stage failure: the failing stage's
// identity plus the underlying cause. The run does not retry.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithEmitter registers a callback receiving each event as it is
// produced. Events are emitted in strict production order from the
// single goroutine driving the run.
func WithEmitter(emit func(Event)) RunOption {
	return func(r *Run) {
		r.emit = emit
	}
}

// WithStageObserver registers a callback receiving the wall-clock
// duration of each completed stage invocation.
func WithStageObserver(observe func(stage string, round int, d time.Duration)) RunOption {
	return func(r *Run) {
		r.observe = observe
	}
}

// Run executes a pipeline once. A run is single-threaded: stages never
// execute concurrently within one run, and the only yield point is a
// gate stage's Suspend outcome. Runs of different pipelines (or of the
// same pipeline) are fully independent.
//
// Run is not safe for concurrent use; serialization is the caller's
// responsibility (session.Session provides it).
type Run struct {
	pipeline *Pipeline
	state    State
	pos      string
	snapshot chat.Transcript
	pending  *PendingRequest
	result   string
	emit     func(Event)
	observe  func(stage string, round int, d time.Duration)
}

// NewRun creates a run in the Created state.
func (p *Pipeline) NewRun(opts ...RunOption) *Run {
	r := &Run{
		pipeline: p,
		state:    StateCreated,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	return r.state
}

// Pending returns the outstanding request, or nil. Non-nil exactly
// when the state is Suspended.
func (r *Run) Pending() *PendingRequest {
	return r.pending
}

// Result returns the final output and true once the run has completed.
func (r *Run) Result() (string, bool) {
	if r.state != StateCompleted {
		return "", false
	}
	return r.result, true
}

// Transcript returns a copy of the transcript snapshot taken at the
// last suspension or termination.
func (r *Run) Transcript() chat.Transcript {
	return r.snapshot.Clone()
}

// Start drives the pipeline from its start stage until it suspends,
// emits, or fails.
func (r *Run) Start(ctx context.Context, transcript chat.Transcript) error {
	if r.state != StateCreated {
		return fmt.Errorf("run already started (state %s)", r.state)
	}
	if err := r.transition(StateRunning); err != nil {
		return err
	}
	return r.advance(ctx, r.pipeline.start, transcript)
}

// Resume folds the external decision into the suspended transcript and
// continues from the gate stage's successor. The pending request is
// consumed before any stage executes.
func (r *Run) Resume(ctx context.Context, decision string) error {
	if r.state != StateSuspended {
		return fmt.Errorf("run is not suspended (state %s)", r.state)
	}

	gate := r.pipeline.nodes[r.pos]
	transcript := r.snapshot
	if folder, ok := gate.stage.(DecisionFolder); ok {
		transcript = folder.FoldDecision(transcript, decision)
	} else {
		transcript = transcript.Append(chat.User(decision))
	}

	r.pending = nil
	if err := r.transition(StateRunning); err != nil {
		return err
	}
	return r.advance(ctx, r.pipeline.next[r.pos], transcript)
}

// advance walks the edge set from the given node until a stage
// suspends, emits, or fails. Cancellation is checked between stage
// invocations only; a stage in flight runs to completion.
func (r *Run) advance(ctx context.Context, from string, transcript chat.Transcript) error {
	for cur := from; ; cur = r.pipeline.next[cur] {
		if cur == "" {
			return r.fail(&StageError{Stage: r.pipeline.nodes[r.pos].stage.Name(), Err: fmt.Errorf("forwarded with no successor stage")})
		}
		if err := ctx.Err(); err != nil {
			return r.fail(&StageError{Stage: r.pipeline.nodes[cur].stage.Name(), Err: err})
		}

		n := r.pipeline.nodes[cur]
		r.pos = cur

		started := time.Now()
		outcome, err := n.stage.Process(ctx, transcript)
		if r.observe != nil {
			r.observe(n.stage.Name(), n.round, time.Since(started))
		}
		if err != nil {
			return r.fail(&StageError{Stage: n.stage.Name(), Err: err})
		}

		switch outcome.kind {
		case outcomeForward:
			transcript = outcome.transcript
			content := outcome.content
			if content == "" {
				content = "completed"
			}
			r.emitEvent(Event{Kind: EventProgress, Stage: n.stage.Name(), Round: n.round, Content: content})

		case outcomeSuspend:
			r.snapshot = transcript.Clone()
			r.pending = outcome.request
			if err := r.transition(StateSuspended); err != nil {
				return err
			}
			r.emitEvent(Event{Kind: EventSuspend, Stage: n.stage.Name(), Content: outcome.request.Prompt, Request: outcome.request})
			r.emitStatus()
			return nil

		case outcomeEmit:
			r.snapshot = transcript.Clone()
			r.result = outcome.result
			if err := r.transition(StateCompleted); err != nil {
				return err
			}
			r.emitEvent(Event{Kind: EventOutput, Stage: n.stage.Name(), Content: outcome.result})
			r.emitStatus()
			return nil
		}
	}
}

func (r *Run) fail(stageErr *StageError) error {
	r.pending = nil
	if err := r.transition(StateFailed); err != nil {
		return err
	}
	r.emitEvent(Event{
		Kind:         EventStatus,
		Stage:        stageErr.Stage,
		Content:      string(StateFailed),
		ErrorMessage: stageErr.Error(),
	})
	return stageErr
}

func (r *Run) transition(to State) error {
	for _, allowed := range validTransitions[r.state] {
		if allowed == to {
			r.state = to
			if to == StateRunning {
				r.emitStatus()
			}
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s → %s", r.state, to)
}

func (r *Run) emitStatus() {
	r.emitEvent(Event{Kind: EventStatus, Stage: eventStageWorkflow, Content: string(r.state)})
}

func (r *Run) emitEvent(event Event) {
	if r.emit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	r.emit(event)
}
