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

// Package agent wraps an LLM provider with a persona and adapts it to
// the pipeline stage contract.
//
// A ChatAgent is instructions plus a provider. The stage adapters
// decide what happens to its reply:
//   - ForwardStage appends the reply and forwards (sequential steps)
//   - EmitStage makes the reply the run's final result (last step)
//   - TurnStage speaks one group-chat turn, labeling the reply with the
//     speaker so later turns can attribute it
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
)

// ChatAgent is a named persona backed by an LLM provider.
type ChatAgent struct {
	name         string
	instructions string
	provider     llms.Provider
	logger       *slog.Logger
}

// Option configures a ChatAgent.
type Option func(*ChatAgent)

// WithLogger sets the agent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *ChatAgent) {
		a.logger = logger
	}
}

// New creates an agent with the given persona instructions.
func New(name, instructions string, provider llms.Provider, opts ...Option) *ChatAgent {
	a := &ChatAgent{
		name:         name,
		instructions: instructions,
		provider:     provider,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent name.
func (a *ChatAgent) Name() string {
	return a.name
}

// Reply sends the transcript to the provider under this agent's
// instructions and returns the model's reply text.
func (a *ChatAgent) Reply(ctx context.Context, transcript chat.Transcript) (string, error) {
	messages := make([]chat.Message, 0, transcript.Len()+1)
	if a.instructions != "" {
		messages = append(messages, chat.System(a.instructions))
	}
	messages = append(messages, transcript.Messages()...)

	a.logger.Debug("agent invoking model",
		"agent", a.name, "model", a.provider.ModelName(),
		"messages", len(messages), "transcript", transcript.Render())

	completion, err := a.provider.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent %q: %w", a.name, err)
	}
	return completion.Text, nil
}

// ForwardStage runs the agent and forwards its reply to the successor
// stage as an assistant message.
type ForwardStage struct {
	agent *ChatAgent
}

// AsForward adapts the agent into a forwarding stage.
func (a *ChatAgent) AsForward() *ForwardStage {
	return &ForwardStage{agent: a}
}

func (s *ForwardStage) Name() string { return s.agent.name }

func (s *ForwardStage) Process(ctx context.Context, transcript chat.Transcript) (pipeline.Outcome, error) {
	reply, err := s.agent.Reply(ctx, transcript)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Forward(transcript.Append(chat.Assistant(reply))), nil
}

// EmitStage runs the agent and terminates the run with its reply as the
// final result.
type EmitStage struct {
	agent *ChatAgent
}

// AsEmit adapts the agent into a terminal stage.
func (a *ChatAgent) AsEmit() *EmitStage {
	return &EmitStage{agent: a}
}

func (s *EmitStage) Name() string { return s.agent.name }

func (s *EmitStage) Process(ctx context.Context, transcript chat.Transcript) (pipeline.Outcome, error) {
	reply, err := s.agent.Reply(ctx, transcript)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Emit(reply), nil
}

// TurnStage runs the agent as one group-chat turn. The reply is folded
// into the transcript labeled with the speaker, and surfaces in the
// turn's progress event.
type TurnStage struct {
	agent *ChatAgent
}

// AsTurn adapts the agent into a group-chat turn stage.
func (a *ChatAgent) AsTurn() *TurnStage {
	return &TurnStage{agent: a}
}

func (s *TurnStage) Name() string { return s.agent.name }

func (s *TurnStage) Process(ctx context.Context, transcript chat.Transcript) (pipeline.Outcome, error) {
	reply, err := s.agent.Reply(ctx, transcript)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	labeled := fmt.Sprintf("[%s]: %s", s.agent.name, reply)
	return pipeline.Forward(transcript.Append(chat.Assistant(labeled))).WithContent(reply), nil
}

var (
	_ pipeline.Stage = (*ForwardStage)(nil)
	_ pipeline.Stage = (*EmitStage)(nil)
	_ pipeline.Stage = (*TurnStage)(nil)
)
