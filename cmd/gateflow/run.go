// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kadirpekel/gateflow/pkg/logger"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
	"github.com/kadirpekel/gateflow/pkg/session"
	"github.com/kadirpekel/gateflow/pkg/workflows"
)

// RunCmd runs one workflow in the terminal, pausing for decisions on
// stdin when the run suspends.
type RunCmd struct {
	Workflow string `arg:"" help:"Workflow name (see 'gateflow workflows')."`
	Input    string `help:"Workflow input (defaults to the workflow's sample input)."`
	Rounds   int    `help:"Discussion rounds for round-based workflows." default:"0"`

	Provider string `help:"LLM provider (openai, anthropic)."`
	Model    string `help:"Model name."`
	APIKey   string `name:"api-key" help:"API key (defaults to environment variable)."`
	BaseURL  string `name:"base-url" help:"Custom API base URL."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cli, c.Provider, c.Model, c.APIKey, c.BaseURL)
	if err != nil {
		return err
	}

	def, err := workflows.Lookup(c.Workflow)
	if err != nil {
		return err
	}

	input := c.Input
	if input == "" {
		input = def.SampleInput
		fmt.Printf("Using sample input:\n%s\n\n", input)
	}

	rounds := c.Rounds
	if def.Rounds && rounds == 0 {
		rounds = cfg.Workflows.BrainstormRounds
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	p, err := def.Build(provider, rounds)
	if err != nil {
		return err
	}
	fmt.Printf("Stages: %s\n\n", strings.Join(p.Stages(), ", "))

	sess := session.New(p, session.WithLogger(logger.GetLogger()))
	events, err := sess.Start(ctx, input)
	printEvents(events)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for sess.State() == pipeline.StateSuspended {
		pending := sess.Pending()
		fmt.Printf("\n%s\n", pending.Prompt)
		if len(pending.Options) > 0 {
			fmt.Printf("Options: %s\n", strings.Join(pending.Options, ", "))
		}
		fmt.Print("Decision: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading decision: %w", err)
		}
		decision := strings.TrimSpace(line)
		if decision == "" {
			continue
		}

		events, err = sess.SubmitDecision(ctx, pending.ID, decision)
		printEvents(events)
		if err != nil {
			return err
		}
	}

	if result, ok := sess.Result(); ok {
		fmt.Printf("\n--- Final output ---\n%s\n", result)
	}
	return nil
}

func printEvents(events []pipeline.Event) {
	for _, event := range events {
		switch event.Kind {
		case pipeline.EventStatus:
			fmt.Printf("  [status] %s\n", event.Content)
		case pipeline.EventProgress:
			if event.Round > 0 {
				fmt.Printf("  [round %d] %s: %s\n", event.Round, event.Stage, truncate(event.Content, 120))
			} else {
				fmt.Printf("  [progress] %s: %s\n", event.Stage, truncate(event.Content, 120))
			}
		case pipeline.EventSuspend:
			fmt.Printf("  [paused] %s: %s\n", event.Stage, event.Content)
		case pipeline.EventOutput:
			fmt.Printf("  [output] %s\n", event.Stage)
		}
	}
}

// truncate shortens s to at most n runes, never splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
