// Package config loads agent wiring (provider, tools, advisors) from a YAML
// document. It only describes construction inputs; the agent package remains
// purely programmatic.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root document.
type Config struct {
	Agent    Agent     `yaml:"agent"`
	Tools    Tools     `yaml:"tools"`
	Advisors []Advisor `yaml:"advisors"`
}

// Agent selects the model provider and its options.
type Agent struct {
	Provider     string `yaml:"provider"` // "anthropic" or "openai"
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	SystemPrompt string `yaml:"system_prompt"`
	Workspace    string `yaml:"workspace"`
	Reasoning    string `yaml:"reasoning"` // "", "low", "medium", "high"
}

// Tools toggles the built-in tool set.
type Tools struct {
	Filesystem          bool   `yaml:"filesystem"`
	RestrictToWorkspace bool   `yaml:"restrict_to_workspace"`
	Exec                bool   `yaml:"exec"`
	WebFetch            bool   `yaml:"web_fetch"`
	Tasks               bool   `yaml:"tasks"`
	SlackToken          string `yaml:"slack_token"`
	SlackChannel        string `yaml:"slack_channel"`
	TelegramTokenEnv    string `yaml:"telegram_token_env"`
	TelegramChatID      int64  `yaml:"telegram_chat_id"`
}

// Advisor describes one sub-agent reacting to tool results.
type Advisor struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model"`
	TriggerTools []string `yaml:"trigger_tools"` // empty fires on every tool result
	SystemPrompt string   `yaml:"system_prompt"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Agent.Provider {
	case "anthropic", "openai", "":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Agent.Provider)
	}
	for _, adv := range c.Advisors {
		if adv.Name == "" {
			return fmt.Errorf("config: advisor without a name")
		}
	}
	return nil
}

// APIKey resolves the configured API key environment variable.
func (c *Config) APIKey() string {
	if c.Agent.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Agent.APIKeyEnv)
}
