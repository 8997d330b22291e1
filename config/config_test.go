package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
agent:
  provider: anthropic
  model: claude-sonnet-4-20250514
  api_key_env: TEST_PI_API_KEY
  system_prompt: "You are a careful assistant."
  workspace: ./work
  reasoning: medium

tools:
  filesystem: true
  restrict_to_workspace: true
  exec: true
  web_fetch: true
  tasks: true
  slack_channel: C0123456

advisors:
  - name: reviewer
    trigger_tools: [exec, write_file]
    system_prompt: "Review the tool output for mistakes."
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Agent.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Agent.Model)
	assert.Equal(t, "medium", cfg.Agent.Reasoning)
	assert.True(t, cfg.Tools.Filesystem)
	assert.True(t, cfg.Tools.RestrictToWorkspace)

	require.Len(t, cfg.Advisors, 1)
	assert.Equal(t, "reviewer", cfg.Advisors[0].Name)
	assert.Equal(t, []string{"exec", "write_file"}, cfg.Advisors[0].TriggerTools)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "agent: ["))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "agent:\n  provider: cohere\n"))
	assert.ErrorContains(t, err, "unknown provider")

	_, err = Load(writeConfig(t, "advisors:\n  - system_prompt: nameless\n"))
	assert.ErrorContains(t, err, "advisor without a name")
}

func TestAPIKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	t.Setenv("TEST_PI_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", cfg.APIKey())

	cfg.Agent.APIKeyEnv = ""
	assert.Equal(t, "", cfg.APIKey())
}
