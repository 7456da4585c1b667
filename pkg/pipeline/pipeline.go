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
	"fmt"
)

// node binds a stage to its position in the edge set. Node ids are
// distinct from stage names so one stage can appear at several
// positions (each round-robin turn is its own node).
type node struct {
	id    string
	stage Stage

	// round is the 1-based group-chat round, 0 for ordinary stages.
	round int
}

// Pipeline is an immutable directed composition of stages. Build one
// with a Builder or NewRoundRobin, then execute it with NewRun.
type Pipeline struct {
	start string
	nodes map[string]node
	next  map[string]string
}

// Start returns the name of the start stage.
func (p *Pipeline) Start() string {
	return p.nodes[p.start].stage.Name()
}

// Stages returns the stage names in dependency order from the start.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.nodes))
	for id := p.start; id != ""; id = p.next[id] {
		names = append(names, p.nodes[id].stage.Name())
	}
	return names
}

// Builder assembles a pipeline from explicit edges, mirroring how a
// workflow graph is declared: add edges, set the start stage, build.
// Errors are collected and reported once by Build.
type Builder struct {
	start string
	nodes map[string]node
	next  map[string]string
	errs  []error
}

// NewBuilder creates an empty pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]node),
		next:  make(map[string]string),
	}
}

// AddEdge declares that to executes after from has forwarded into it.
func (b *Builder) AddEdge(from, to Stage) *Builder {
	b.register(from)
	b.register(to)
	if existing, ok := b.next[from.Name()]; ok {
		b.errs = append(b.errs, fmt.Errorf("stage %q already has successor %q", from.Name(), existing))
		return b
	}
	b.next[from.Name()] = to.Name()
	return b
}

// SetStart designates the pipeline's entry stage.
func (b *Builder) SetStart(stage Stage) *Builder {
	b.register(stage)
	b.start = stage.Name()
	return b
}

func (b *Builder) register(stage Stage) {
	name := stage.Name()
	if existing, ok := b.nodes[name]; ok {
		if existing.stage != stage {
			b.errs = append(b.errs, fmt.Errorf("two stages registered under name %q", name))
		}
		return
	}
	b.nodes[name] = node{id: name, stage: stage}
}

// Build validates the edge set and returns the pipeline. The start
// stage must be set, every stage must be reachable from it, and the
// walk must terminate.
func (b *Builder) Build() (*Pipeline, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.start == "" {
		return nil, fmt.Errorf("pipeline has no start stage")
	}
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("pipeline has no stages")
	}

	visited := make(map[string]bool, len(b.nodes))
	for id := b.start; id != ""; id = b.next[id] {
		if visited[id] {
			return nil, fmt.Errorf("pipeline contains a cycle through stage %q", id)
		}
		visited[id] = true
	}
	for name := range b.nodes {
		if !visited[name] {
			return nil, fmt.Errorf("stage %q is not reachable from start %q", name, b.start)
		}
	}

	return &Pipeline{start: b.start, nodes: b.nodes, next: b.next}, nil
}

// NewChain builds a linear pipeline from the given stages in order.
func NewChain(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("chain requires at least one stage")
	}
	b := NewBuilder().SetStart(stages[0])
	for i := 0; i+1 < len(stages); i++ {
		b.AddEdge(stages[i], stages[i+1])
	}
	return b.Build()
}

// RoundRobinOption configures a round-robin pipeline.
type RoundRobinOption func(*roundRobinConfig)

type roundRobinConfig struct {
	prelude Stage
}

// WithPrelude inserts a stage before the first turn, typically to frame
// the discussion topic for the participants.
func WithPrelude(stage Stage) RoundRobinOption {
	return func(c *roundRobinConfig) {
		c.prelude = stage
	}
}

// NewRoundRobin builds a group-chat pipeline: the participants speak in
// the given order for the configured number of rounds, then the
// synthesizer produces the final output. The rounds are unrolled into
// the ordinary edge set, so the same executor drives both shapes;
// round k+1 cannot start before round k has fully completed because
// each turn is the sole successor of the previous one.
func NewRoundRobin(participants []Stage, rounds int, synthesizer Stage, opts ...RoundRobinOption) (*Pipeline, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("round robin requires at least one participant")
	}
	if rounds < 1 {
		return nil, fmt.Errorf("round robin requires at least one round, got %d", rounds)
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("round robin requires a synthesizer stage")
	}

	var cfg roundRobinConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	nodes := make(map[string]node)
	next := make(map[string]string)

	var order []string
	if cfg.prelude != nil {
		id := cfg.prelude.Name()
		nodes[id] = node{id: id, stage: cfg.prelude}
		order = append(order, id)
	}
	for round := 1; round <= rounds; round++ {
		for _, stage := range participants {
			id := fmt.Sprintf("%s#%d", stage.Name(), round)
			if _, ok := nodes[id]; ok {
				return nil, fmt.Errorf("duplicate participant %q", stage.Name())
			}
			nodes[id] = node{id: id, stage: stage, round: round}
			order = append(order, id)
		}
	}

	synthID := synthesizer.Name()
	if _, ok := nodes[synthID]; ok {
		return nil, fmt.Errorf("synthesizer %q collides with a participant", synthID)
	}
	nodes[synthID] = node{id: synthID, stage: synthesizer}
	order = append(order, synthID)

	for i := 0; i+1 < len(order); i++ {
		next[order[i]] = order[i+1]
	}

	return &Pipeline{start: order[0], nodes: nodes, next: next}, nil
}
