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

// Package pipeline implements the pausable workflow executor.
//
// A Pipeline is a directed composition of Stages walked by a Run. Each
// stage consumes the accumulated transcript and produces exactly one
// Outcome:
//   - Forward: pass an enriched transcript to the successor stage
//   - Suspend: halt the run pending an external decision
//   - Emit: terminate the run with a final result
//
// Suspension is a first-class outcome rather than an error or callback,
// so the run's control flow is an explicit state machine:
//
//	Created → Running → {Suspended, Completed, Failed}
//	Suspended → Running (on decision) → {Suspended, Completed, Failed}
//
// Completed and Failed are terminal. Stage successors are an explicit
// edge set, so sequential chains and round-robin group chats are both
// special cases of the same edge-walking executor.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/kadirpekel/gateflow/pkg/chat"
)

// Stage is a unit of work within a pipeline.
//
// Stages are stateless between invocations: everything a stage needs
// arrives in the transcript, and everything it produces leaves through
// the returned Outcome. A returned error aborts the run; retry, if
// desired, is a stage-internal policy.
type Stage interface {
	// Name identifies the stage in events and errors.
	Name() string

	// Process consumes the transcript and decides how the run proceeds.
	Process(ctx context.Context, transcript chat.Transcript) (Outcome, error)
}

// DecisionFolder is implemented by gate stages that control how an
// external decision is folded back into the transcript on resumption.
// Stages that suspend without implementing it get the decision appended
// as a plain user message.
type DecisionFolder interface {
	FoldDecision(transcript chat.Transcript, decision string) chat.Transcript
}

// PendingRequest describes the external input a suspended run is
// waiting for. Exactly one request is outstanding per run at a time,
// addressed by its ID and consumed (single-use) on submission.
type PendingRequest struct {
	// ID uniquely identifies this request.
	ID string `json:"id"`

	// Prompt explains to the human what decision is needed.
	Prompt string `json:"prompt"`

	// Options enumerates suggested decisions. Free-form decisions are
	// also accepted; the options exist for display.
	Options []string `json:"options,omitempty"`

	// Summary is a display snapshot of the work done so far.
	Summary string `json:"summary,omitempty"`
}

type outcomeKind int

const (
	outcomeForward outcomeKind = iota
	outcomeSuspend
	outcomeEmit
)

// Outcome is the tagged result of a stage invocation. Construct one
// with Forward, Suspend or Emit.
type Outcome struct {
	kind       outcomeKind
	transcript chat.Transcript
	request    *PendingRequest
	result     string
	content    string
}

// Forward advances the run to the successor stage with the updated
// transcript.
func Forward(transcript chat.Transcript) Outcome {
	return Outcome{kind: outcomeForward, transcript: transcript}
}

// Suspend halts the run pending an external decision. The transcript
// as accumulated so far (including this stage's partial contribution)
// is snapshotted by the executor.
func Suspend(request *PendingRequest) Outcome {
	return Outcome{kind: outcomeSuspend, request: request}
}

// Emit terminates the run successfully with the final result.
func Emit(result string) Outcome {
	return Outcome{kind: outcomeEmit, result: result}
}

// WithContent attaches display content to a Forward outcome. The
// executor copies it into the stage's progress event, which is how
// group-chat turns surface their reply text.
func (o Outcome) WithContent(content string) Outcome {
	o.content = content
	return o
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, transcript chat.Transcript) (Outcome, error)
}

// NewStageFunc creates a function-backed stage.
func NewStageFunc(name string, fn func(ctx context.Context, transcript chat.Transcript) (Outcome, error)) *StageFunc {
	return &StageFunc{name: name, fn: fn}
}

func (s *StageFunc) Name() string { return s.name }

func (s *StageFunc) Process(ctx context.Context, transcript chat.Transcript) (Outcome, error) {
	return s.fn(ctx, transcript)
}

// Gate is the built-in suspension stage. When reached it snapshots the
// transcript and suspends the run with a fresh PendingRequest; on
// resumption it folds the decision into the transcript as a user
// message, optionally prefixed (e.g. "Manager decision: ").
type Gate struct {
	name           string
	prompt         string
	options        []string
	decisionPrefix string
	summarize      func(chat.Transcript) string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDecisionPrefix sets the text prepended to the decision when it is
// folded into the transcript.
func WithDecisionPrefix(prefix string) GateOption {
	return func(g *Gate) {
		g.decisionPrefix = prefix
	}
}

// WithSummary sets how the request's display summary is derived from
// the transcript. The default uses the last message's text.
func WithSummary(fn func(chat.Transcript) string) GateOption {
	return func(g *Gate) {
		g.summarize = fn
	}
}

// NewGate creates a gate stage with the given request prompt and
// suggested decision options.
func NewGate(name, prompt string, options []string, opts ...GateOption) *Gate {
	g := &Gate{
		name:      name,
		prompt:    prompt,
		options:   append([]string(nil), options...),
		summarize: func(t chat.Transcript) string { return t.LastText() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Name() string { return g.name }

func (g *Gate) Process(ctx context.Context, transcript chat.Transcript) (Outcome, error) {
	return Suspend(&PendingRequest{
		ID:      uuid.NewString(),
		Prompt:  g.prompt,
		Options: append([]string(nil), g.options...),
		Summary: g.summarize(transcript),
	}), nil
}

// FoldDecision appends the decision to the transcript as a user
// message, applying the configured prefix.
func (g *Gate) FoldDecision(transcript chat.Transcript, decision string) chat.Transcript {
	return transcript.Append(chat.User(g.decisionPrefix + decision))
}

var (
	_ Stage          = (*StageFunc)(nil)
	_ Stage          = (*Gate)(nil)
	_ DecisionFolder = (*Gate)(nil)
)
