package config

import "time"

// ServerConfig controls the kernel HTTP listener.
type ServerConfig struct {
	// Host is the listen address. Cortex is local-first, so the default
	// binds loopback only.
	Host string `yaml:"host"`

	// Port is the HTTP port for /orchestrate and the tool-service surface.
	Port int `yaml:"port"`

	// ReadTimeout bounds how long a request body may take to arrive.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds how long a response may take to drain.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests on exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ContextConfig controls the context builder fan-out.
type ContextConfig struct {
	// SoftTimeout is how long the builder waits before assembling with
	// whatever sources have responded.
	SoftTimeout time.Duration `yaml:"soft_timeout"`

	// HardTimeout is the absolute bound on context assembly.
	HardTimeout time.Duration `yaml:"hard_timeout"`

	// MaxSourceBytes caps each source's contribution before truncation.
	MaxSourceBytes int `yaml:"max_source_bytes"`

	// HistoryLimit is how many recent messages the memory source renders.
	HistoryLimit int `yaml:"history_limit"`
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Plans can run several tool calls back to back; give responses room.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
}

func applyContextDefaults(cfg *Config) {
	if cfg.Context.SoftTimeout == 0 {
		cfg.Context.SoftTimeout = 2 * time.Second
	}
	if cfg.Context.HardTimeout == 0 {
		cfg.Context.HardTimeout = 5 * time.Second
	}
	if cfg.Context.MaxSourceBytes == 0 {
		cfg.Context.MaxSourceBytes = 4096
	}
	if cfg.Context.HistoryLimit == 0 {
		cfg.Context.HistoryLimit = 5
	}
}
