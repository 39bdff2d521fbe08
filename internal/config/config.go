// Package config loads and validates the Cortex configuration file.
//
// Configuration is YAML (or JSON5) with environment variable expansion and
// $include composition. Every field has a working default: a missing config
// file yields a fully functional local setup under ~/.cortex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration for the Cortex kernel.
type Config struct {
	// Version is the config file schema version.
	Version int `yaml:"version"`

	// DataDir is the base directory for local state (database, sessions,
	// inbox). Defaults to ~/.cortex.
	DataDir string `yaml:"data_dir"`

	Server        ServerConfig        `yaml:"server"`
	Context       ContextConfig       `yaml:"context"`
	Storage       StorageConfig       `yaml:"storage"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Timeline      TimelineConfig      `yaml:"timeline"`
	RAG           RAGConfig           `yaml:"rag"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Cognitive     CognitiveConfig     `yaml:"cognitive"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Load reads the configuration file at path, resolving $include directives
// and environment variables, and returns the validated config. A missing
// file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		applyDefaults(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the default config file location (~/.cortex/config.yaml).
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// DefaultDataDir returns ~/.cortex, falling back to .cortex in the working
// directory when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return filepath.Join(home, ".cortex")
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	applyServerDefaults(cfg)
	applyContextDefaults(cfg)
	applyStorageDefaults(cfg)
	applySessionsDefaults(cfg)
	applyTimelineDefaults(cfg)
	applyRAGDefaults(cfg)
	applyEmbeddingsDefaults(cfg)
	applyLLMDefaults(cfg)
	applyToolsDefaults(cfg)
	applyCognitiveDefaults(cfg)
	applyObservabilityDefaults(cfg)
}

// Validate checks cross-field constraints that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.RAG.validate(); err != nil {
		return err
	}
	if err := c.Embeddings.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if err := c.Tools.validate(); err != nil {
		return err
	}
	if err := c.Observability.validate(); err != nil {
		return err
	}
	return nil
}
