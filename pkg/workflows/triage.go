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
	"github.com/kadirpekel/gateflow/pkg/agent"
	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
)

const (
	classifierInstructions = "You are a customer-support ticket classifier. " +
		"Read the customer ticket and respond with EXACTLY one category " +
		"(Billing, Technical, or General) followed by a one-sentence reason. " +
		"Format: 'Category: <category>\nReason: <reason>'"

	researcherInstructions = "You are a knowledge-base researcher for a support team. " +
		"Given the ticket and its classification, provide 2-3 bullet points " +
		"of relevant knowledge-base information that would help draft a reply. " +
		"Be concise and factual."

	responderInstructions = "You are a professional customer-support agent. " +
		"Using the ticket, classification, and knowledge-base notes provided, " +
		"draft a friendly, empathetic, and helpful reply to the customer. " +
		"Keep it under 150 words."
)

func triageDefinition() Definition {
	return Definition{
		Name:        "triage",
		Title:       "Customer Support Ticket Triage",
		Description: "An incoming support ticket is classified, researched against the knowledge base, and answered, each step feeding the next.",
		SampleInput: "Hi, I was charged twice for my subscription last month. " +
			"Order #12345. I've been a customer for 3 years and this is really " +
			"frustrating. Please help me get a refund ASAP.",
		build: buildTriage,
	}
}

func buildTriage(provider llms.Provider, _ int) (*pipeline.Pipeline, error) {
	classifier := agent.New("classifier", classifierInstructions, provider)
	researcher := agent.New("researcher", researcherInstructions, provider)
	responder := agent.New("responder", responderInstructions, provider)

	return pipeline.NewChain(
		classifier.AsForward(),
		researcher.AsForward(),
		responder.AsEmit(),
	)
}
