package config

import (
	"fmt"
	"time"
)

// LLMConfig routes model roles to configured providers.
type LLMConfig struct {
	// Roles maps a role (reasoning, coding, vision) to a provider and model.
	Roles map[string]LLMRoleConfig `yaml:"roles"`

	// Providers declares the available backends by name.
	Providers map[string]LLMProviderConfig `yaml:"providers"`

	// Timeout bounds one model call.
	Timeout time.Duration `yaml:"timeout"`
}

// LLMRoleConfig binds one role to a provider and model.
type LLMRoleConfig struct {
	// Provider is a key of LLMConfig.Providers.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model for this role.
	Model string `yaml:"model"`
}

// LLMProviderConfig declares one model backend.
type LLMProviderConfig struct {
	// Kind selects the client: "toolservice" (an external llm tool service
	// speaking the fleet contract), "ollama", "openai", "anthropic", "google"
	// or "bedrock".
	Kind string `yaml:"kind"`

	// APIKey authenticates to hosted providers.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint (required for ollama).
	BaseURL string `yaml:"base_url"`

	// Model is the default model when a role does not override it.
	Model string `yaml:"model"`

	// Region selects the AWS region for bedrock.
	Region string `yaml:"region"`

	// AccessKeyID, SecretAccessKey and SessionToken are static bedrock
	// credentials. When empty the default AWS credential chain applies.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

func applyLLMDefaults(cfg *Config) {
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	if _, ok := cfg.LLM.Providers["ollama"]; !ok {
		cfg.LLM.Providers["ollama"] = LLMProviderConfig{
			Kind:    "ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1:8b",
		}
	}
	if cfg.LLM.Roles == nil {
		cfg.LLM.Roles = map[string]LLMRoleConfig{}
	}
	if _, ok := cfg.LLM.Roles["reasoning"]; !ok {
		cfg.LLM.Roles["reasoning"] = LLMRoleConfig{Provider: "ollama", Model: "llama3.1:8b"}
	}
	if _, ok := cfg.LLM.Roles["coding"]; !ok {
		cfg.LLM.Roles["coding"] = LLMRoleConfig{Provider: "ollama", Model: "qwen2.5-coder:7b"}
	}
	if _, ok := cfg.LLM.Roles["vision"]; !ok {
		cfg.LLM.Roles["vision"] = LLMRoleConfig{Provider: "ollama", Model: "llava:7b"}
	}
}

func (c *LLMConfig) validate() error {
	for role, rc := range c.Roles {
		switch role {
		case "reasoning", "coding", "vision":
		default:
			return fmt.Errorf("llm.roles.%s is not a known role", role)
		}
		if _, ok := c.Providers[rc.Provider]; !ok {
			return fmt.Errorf("llm.roles.%s references undeclared provider %q", role, rc.Provider)
		}
	}
	for name, pc := range c.Providers {
		switch pc.Kind {
		case "toolservice", "ollama", "openai", "anthropic", "google", "bedrock":
		default:
			return fmt.Errorf("llm.providers.%s.kind %q is not supported", name, pc.Kind)
		}
		if (pc.Kind == "toolservice" || pc.Kind == "ollama") && pc.BaseURL == "" {
			return fmt.Errorf("llm.providers.%s requires base_url", name)
		}
		if pc.Kind == "bedrock" && pc.Region == "" {
			return fmt.Errorf("llm.providers.%s requires region", name)
		}
	}
	return nil
}
