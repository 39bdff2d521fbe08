package config

import (
	"fmt"
	"net/url"
	"time"
)

// ToolsConfig declares the external tool services the kernel can call.
// The rag, memory and llm tools are served in-process and need no entry here.
type ToolsConfig struct {
	// Services maps a tool name (files, vision, search, system, control,
	// audio, documents) to its base URL.
	Services map[string]ToolServiceConfig `yaml:"services"`

	// Timeout bounds one tool call.
	Timeout time.Duration `yaml:"timeout"`

	// VisionTimeout bounds vision tool calls, which run a model per call.
	VisionTimeout time.Duration `yaml:"vision_timeout"`

	// HealthInterval is how often registered services are probed.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// ToolServiceConfig locates one tool service.
type ToolServiceConfig struct {
	// URL is the service base URL, e.g. http://localhost:8101.
	URL string `yaml:"url"`
}

func applyToolsDefaults(cfg *Config) {
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = 30 * time.Second
	}
	if cfg.Tools.VisionTimeout == 0 {
		cfg.Tools.VisionTimeout = 60 * time.Second
	}
	if cfg.Tools.HealthInterval == 0 {
		cfg.Tools.HealthInterval = time.Minute
	}
	if cfg.Tools.Services == nil {
		cfg.Tools.Services = map[string]ToolServiceConfig{}
	}
}

func (c *ToolsConfig) validate() error {
	for name, svc := range c.Services {
		if svc.URL == "" {
			return fmt.Errorf("tools.services.%s.url is required", name)
		}
		if _, err := url.Parse(svc.URL); err != nil {
			return fmt.Errorf("tools.services.%s.url: %w", name, err)
		}
	}
	return nil
}
