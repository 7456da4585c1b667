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

package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/gateflow/pkg/agent"
	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
)

const (
	marketingInstructions = "You are the Marketing Lead in a product launch brainstorm. " +
		"Focus on brand messaging, target audience, campaign channels, " +
		"and competitive positioning. Be creative but practical. " +
		"Keep responses under 100 words. Reference other participants' points."

	engineeringInstructions = "You are the Engineering Lead in a product launch brainstorm. " +
		"Focus on feature readiness, technical milestones, scalability " +
		"concerns, and integration points. Be realistic about timelines. " +
		"Keep responses under 100 words. Build on the discussion."

	pmInstructions = "You are the Product Manager leading a product launch brainstorm. " +
		"Synthesize marketing and engineering perspectives. Focus on " +
		"prioritization, go-to-market strategy, success metrics, and risks. " +
		"Keep responses under 100 words. Drive toward actionable decisions."

	synthesisPrompt = "The brainstorming rounds are complete. As the Product Manager, " +
		"please synthesize all the inputs into a concise launch plan with: " +
		"1) Key messages, 2) Feature highlights, 3) Timeline, 4) Action items. " +
		"Keep it under 200 words."
)

func brainstormDefinition() Definition {
	return Definition{
		Name:        "brainstorm",
		Title:       "Product Launch Brainstorm",
		Description: "Marketing, engineering and product leads take round-robin turns discussing a launch topic, then the product manager synthesizes a launch plan.",
		SampleInput: "We are launching 'AzureBot Pro' — an AI-powered customer service platform " +
			"for mid-market SaaS companies. Launch date target: Q2 2026. " +
			"Key differentiators: multi-language support, built-in analytics dashboard, " +
			"and seamless CRM integrations. Budget: $500K for launch campaign.",
		Rounds: true,
		build:  buildBrainstorm,
	}
}

func buildBrainstorm(provider llms.Provider, rounds int) (*pipeline.Pipeline, error) {
	marketing := agent.New("MarketingLead", marketingInstructions, provider)
	engineering := agent.New("EngineeringLead", engineeringInstructions, provider)
	pm := agent.New("ProductManager", pmInstructions, provider)

	participants := []pipeline.Stage{
		marketing.AsTurn(),
		engineering.AsTurn(),
		pm.AsTurn(),
	}

	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name()
	}

	// The moderator reframes the raw topic into the meeting prompt the
	// participants respond to.
	moderator := pipeline.NewStageFunc("moderator", func(ctx context.Context, transcript chat.Transcript) (pipeline.Outcome, error) {
		framing := fmt.Sprintf(
			"You are in a group brainstorming meeting. The topic is:\n\n%s\n\n"+
				"Participants: %s. "+
				"Please contribute your perspective concisely (under 100 words). "+
				"Build on what others have said.",
			transcript.LastText(), strings.Join(names, ", "))
		return pipeline.Forward(chat.NewTranscript(chat.User(framing))), nil
	})

	// The synthesis turn speaks as the product manager after the last
	// round, with the summary prompt folded in.
	synthesis := pipeline.NewStageFunc("launch-plan", func(ctx context.Context, transcript chat.Transcript) (pipeline.Outcome, error) {
		reply, err := pm.Reply(ctx, transcript.Append(chat.User(synthesisPrompt)))
		if err != nil {
			return pipeline.Outcome{}, err
		}
		return pipeline.Emit(reply), nil
	})

	return pipeline.NewRoundRobin(participants, rounds, synthesis, pipeline.WithPrelude(moderator))
}
