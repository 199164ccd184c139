// Package config defines the configuration schema for repopulse.
//
// JSON keys use camelCase; the file lives at ~/.repopulse/config.json.
package config

import "os"

// SessionIDEnv is the environment variable that overrides hosted.sessionId.
const SessionIDEnv = "REPOPULSE_SESSION_ID"

// HostedConfig holds the connection parameters for the hosted tool session.
type HostedConfig struct {
	BaseURL   string            `json:"baseUrl"`
	SessionID string            `json:"sessionId"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ResolveSessionID returns the effective session identifier.
// The REPOPULSE_SESSION_ID environment variable wins over the config value.
func (h HostedConfig) ResolveSessionID() string {
	if v := os.Getenv(SessionIDEnv); v != "" {
		return v
	}
	return h.SessionID
}

func defaultHostedConfig() HostedConfig {
	return HostedConfig{
		BaseURL: "https://tools.example.dev/rpc",
		Headers: map[string]string{},
	}
}

// LLMConfig holds credentials and defaults for the LLM provider.
type LLMConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	Model        string            `json:"model"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{Model: "gpt-4o"}
}

// AgentDefaults holds default values for agent behaviour.
type AgentDefaults struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	MaxToolIter int     `json:"maxToolIterations"`
	FetchURL    bool    `json:"fetchUrlTool"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		MaxTokens:   8192,
		Temperature: 0.7,
		MaxToolIter: 20,
		FetchURL:    true,
	}
}

// SlackConfig configures the direct Slack notifier.
// Only used when the workflow's notify mode is "slack"; the default mode
// dispatches notifications through the hosted task API instead.
type SlackConfig struct {
	BotToken string `json:"botToken"`
	Channel  string `json:"channel"`
}

func defaultSlackConfig() SlackConfig {
	return SlackConfig{}
}

// Config is the root configuration object.
type Config struct {
	Hosted HostedConfig  `json:"hosted"`
	LLM    LLMConfig     `json:"llm"`
	Agent  AgentDefaults `json:"agent"`
	Slack  SlackConfig   `json:"slack"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Hosted: defaultHostedConfig(),
		LLM:    defaultLLMConfig(),
		Agent:  defaultAgentDefaults(),
		Slack:  defaultSlackConfig(),
	}
}
