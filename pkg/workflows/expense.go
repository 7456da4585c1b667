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
	analystInstructions = "You are a corporate expense analyst. Review the submitted expense report " +
		"and produce a structured analysis with:\n" +
		"1. Expense summary (amount, category, vendor)\n" +
		"2. Policy compliance check\n" +
		"3. Risk flags (if any)\n" +
		"4. Recommendation: APPROVE or FLAG FOR REVIEW\n" +
		"Be concise and professional."

	processorInstructions = "You are an expense processing agent. Based on the expense analysis " +
		"and the manager's decision, produce a final processing summary:\n" +
		"- If approved: confirm processing and expected reimbursement timeline.\n" +
		"- If rejected: explain the reason and next steps for the employee.\n" +
		"- If more info needed: list the specific information required.\n" +
		"Keep the tone professional and helpful."

	gatePrompt = "Please review the expense analysis above and provide your decision."
)

// gateOptions are the suggested decisions presented to the manager.
// Free-form decisions are accepted as well.
var gateOptions = []string{"Approved", "Rejected", "Need More Info"}

func expenseApprovalDefinition() Definition {
	return Definition{
		Name:        "expense-approval",
		Title:       "Expense Approval",
		Description: "An expense report is analysed by an agent, then the run pauses for a manager's decision before a final processing summary is produced.",
		SampleInput: "Expense Report #EXP-2026-0412\n" +
			"Employee: Jane Smith\n" +
			"Department: Engineering\n" +
			"Date: 2026-01-28\n" +
			"Vendor: TechConf Global\n" +
			"Amount: $2,450.00\n" +
			"Category: Conference Registration\n" +
			"Description: Annual AI/ML conference registration fee including " +
			"workshop access and networking dinner.",
		Suspends: true,
		build:    buildExpenseApproval,
	}
}

func buildExpenseApproval(provider llms.Provider, _ int) (*pipeline.Pipeline, error) {
	analyst := agent.New("analyst", analystInstructions, provider)
	processor := agent.New("processor", processorInstructions, provider)

	gate := pipeline.NewGate("human-gate", gatePrompt, gateOptions,
		pipeline.WithDecisionPrefix("Manager decision: "))

	return pipeline.NewChain(
		analyst.AsForward(),
		gate,
		processor.AsEmit(),
	)
}
