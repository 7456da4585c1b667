package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "simple", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Workflows.BrainstormRounds)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  temperature: 0.3
  timeout: 60s
server:
  port: 9090
logging:
  level: debug
  format: verbose
workflows:
  brainstorm_rounds: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "verbose", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Workflows.BrainstormRounds)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GF_MODEL", "gpt-4o")
	t.Setenv("TEST_GF_KEY", "sk-test")

	path := writeConfig(t, `
llm:
  model: ${TEST_GF_MODEL}
  api_key: ${TEST_GF_KEY}
server:
  port: ${TEST_GF_PORT:-8081}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestAPIKeyFallsBackToProviderEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 99999\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestValidateRejectsBadRounds(t *testing.T) {
	path := writeConfig(t, "workflows:\n  brainstorm_rounds: 9\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brainstorm_rounds")
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	path := writeConfig(t, "logging:\n  format: json\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging format")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("TEST_GF_VALUE", "present")

	assert.Equal(t, "present", expandEnvString("${TEST_GF_VALUE}"))
	assert.Equal(t, "present", expandEnvString("$TEST_GF_VALUE"))
	assert.Equal(t, "fallback", expandEnvString("${TEST_GF_MISSING:-fallback}"))
	assert.Equal(t, "", expandEnvString("${TEST_GF_MISSING}"))
	assert.Equal(t, "no vars here", expandEnvString("no vars here"))
}

func TestParseValueTyping(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("False"))
	assert.Equal(t, 8081, parseValue("8081"))
	assert.Equal(t, 0.5, parseValue("0.5"))
	assert.Equal(t, "plain", parseValue("plain"))
}
