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

// Package workflows holds the built-in workflow definitions: ticket
// triage (sequential), expense approval (human-in-the-loop) and product
// launch brainstorm (round-robin group chat). Each definition builds a
// pipeline over a shared LLM provider; the catalog is what the server
// and CLI expose.
package workflows

import (
	"fmt"

	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
)

// Rounds bounds for workflows that run discussion rounds.
const (
	MinRounds     = 1
	MaxRounds     = 5
	DefaultRounds = 2
)

// Definition describes one workflow in the catalog.
type Definition struct {
	// Name is the stable identifier used in URLs and the CLI.
	Name string `json:"name"`

	// Title and Description are display text.
	Title       string `json:"title"`
	Description string `json:"description"`

	// SampleInput seeds the input form.
	SampleInput string `json:"sample_input"`

	// Suspends reports whether runs of this workflow pause for a human
	// decision before completing.
	Suspends bool `json:"suspends"`

	// Rounds reports whether the workflow accepts a rounds parameter.
	Rounds bool `json:"rounds"`

	build func(provider llms.Provider, rounds int) (*pipeline.Pipeline, error)
}

// Build creates a fresh pipeline for one run. For workflows without
// rounds the parameter is ignored; otherwise it is validated against
// MinRounds/MaxRounds, with DefaultRounds substituted for zero.
func (d Definition) Build(provider llms.Provider, rounds int) (*pipeline.Pipeline, error) {
	if d.Rounds {
		if rounds == 0 {
			rounds = DefaultRounds
		}
		if rounds < MinRounds || rounds > MaxRounds {
			return nil, fmt.Errorf("workflow %q: rounds must be between %d and %d, got %d",
				d.Name, MinRounds, MaxRounds, rounds)
		}
	}
	return d.build(provider, rounds)
}

// Catalog returns the built-in workflow definitions in display order.
func Catalog() []Definition {
	return []Definition{
		triageDefinition(),
		expenseApprovalDefinition(),
		brainstormDefinition(),
	}
}

// Lookup finds a definition by name.
func Lookup(name string) (Definition, error) {
	for _, d := range Catalog() {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("unknown workflow %q", name)
}
