package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// StorageConfig selects the relational store backing RAG and the timeline.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored for postgres.
	Path string `yaml:"path"`

	// DSN is the postgres connection string. Required when Driver is
	// "postgres".
	DSN string `yaml:"dsn"`

	// MaxConnections caps the pool size for postgres.
	MaxConnections int `yaml:"max_connections"`

	// ConnMaxLifetime recycles postgres connections after this duration.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SessionsConfig controls the file-backed session memory store.
type SessionsConfig struct {
	// Dir is the root of the session tree (active/, archive/, projects/,
	// tests/). Defaults to <data_dir>/sessions.
	Dir string `yaml:"dir"`

	// ArchiveAfter is the idle age after which active sessions move to
	// archive/YYYY-MM.
	ArchiveAfter time.Duration `yaml:"archive_after"`

	// SweepInterval is how often the archival sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TimelineConfig controls the append-only event log.
type TimelineConfig struct {
	// MaxEventsPerSession trims the oldest events past this count.
	MaxEventsPerSession int `yaml:"max_events_per_session"`
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, "cortex.db")
	}
	if cfg.Storage.MaxConnections == 0 {
		cfg.Storage.MaxConnections = 10
	}
	if cfg.Storage.ConnMaxLifetime == 0 {
		cfg.Storage.ConnMaxLifetime = 30 * time.Minute
	}
}

func applySessionsDefaults(cfg *Config) {
	if cfg.Sessions.Dir == "" {
		cfg.Sessions.Dir = filepath.Join(cfg.DataDir, "sessions")
	}
	if cfg.Sessions.ArchiveAfter == 0 {
		cfg.Sessions.ArchiveAfter = 7 * 24 * time.Hour
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = time.Hour
	}
}

func applyTimelineDefaults(cfg *Config) {
	if cfg.Timeline.MaxEventsPerSession == 0 {
		cfg.Timeline.MaxEventsPerSession = 1_000_000
	}
}

func (c *StorageConfig) validate() error {
	switch c.Driver {
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (want sqlite or postgres)", c.Driver)
	}
	return nil
}
