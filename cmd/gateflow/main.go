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

// Command gateflow runs pausable agent workflows.
//
// Usage:
//
//	gateflow serve --config config.yaml
//	gateflow run triage --input "I was charged twice for order #12345."
//	gateflow run expense-approval
//	gateflow workflows
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/gateflow/pkg/config"
	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/logger"
	"github.com/kadirpekel/gateflow/pkg/observability"
	"github.com/kadirpekel/gateflow/pkg/server"
	"github.com/kadirpekel/gateflow/pkg/workflows"
)

// CLI defines the command-line interface.
type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Serve     ServeCmd     `cmd:"" help:"Start the workflow server."`
	Run       RunCmd       `cmd:"" help:"Run a workflow in the terminal."`
	Workflows WorkflowsCmd `cmd:"" help:"List available workflows."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("gateflow version %s\n", version)
	return nil
}

// WorkflowsCmd lists the workflow catalog.
type WorkflowsCmd struct{}

func (c *WorkflowsCmd) Run() error {
	for _, d := range workflows.Catalog() {
		fmt.Printf("%-18s %s\n", d.Name, d.Title)
		fmt.Printf("%-18s %s\n", "", d.Description)
	}
	return nil
}

// loadConfig merges the config file with provider overrides.
func loadConfig(cli *CLI, provider, model, apiKey, baseURL string) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	cfg.SetDefaults()
	return cfg, nil
}

func buildProvider(cfg *config.Config) (llms.Provider, error) {
	return llms.NewProvider(llms.ProviderConfig{
		Name:        cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("gateflow"),
		kong.Description("Pausable agent workflows with human-in-the-loop gates"),
		kong.UsageOnError(),
	)

	level, _ := logger.ParseLevel(cli.LogLevel)
	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(level, output, cli.LogFormat)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Provider string `help:"LLM provider (openai, anthropic)."`
	Model    string `help:"Model name."`
	APIKey   string `name:"api-key" help:"API key (defaults to environment variable)."`
	BaseURL  string `name:"base-url" help:"Custom API base URL."`
	Port     int    `help:"Port to listen on." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cli, c.Provider, c.Model, c.APIKey, c.BaseURL)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	metrics, err := observability.Init()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Address:         cfg.Server.Address(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DefaultRounds:   cfg.Workflows.BrainstormRounds,
	}, provider,
		server.WithMetrics(metrics),
		server.WithLogger(logger.GetLogger()),
	)
	return srv.Start(ctx)
}
