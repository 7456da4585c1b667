// Package config loads the service configuration from YAML with
// environment expansion. Settings resolve in order: built-in defaults,
// the config file, then environment variables referenced from it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/gateflow/pkg/workflows"
)

// Config is the root configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workflows WorkflowsConfig `yaml:"workflows"`
}

// LLMConfig selects and tunes the model provider shared by all agents.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WorkflowsConfig tunes the built-in workflows.
type WorkflowsConfig struct {
	// BrainstormRounds is the default number of group-chat rounds when
	// a run does not specify one.
	BrainstormRounds int `yaml:"brainstorm_rounds"`
}

// SetDefaults fills unset fields with working defaults.
func (c *Config) SetDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
	if c.Workflows.BrainstormRounds == 0 {
		c.Workflows.BrainstormRounds = workflows.DefaultRounds
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = providerAPIKey(c.LLM.Provider)
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if r := c.Workflows.BrainstormRounds; r < workflows.MinRounds || r > workflows.MaxRounds {
		return fmt.Errorf("brainstorm_rounds must be between %d and %d, got %d",
			workflows.MinRounds, workflows.MaxRounds, r)
	}
	switch c.Logging.Format {
	case "simple", "verbose":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// Load reads the config file at path, expands environment references
// and applies defaults. A missing or empty path yields the defaults.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	expanded, _ := expandNode(raw).(map[string]interface{})

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(expanded)
}
