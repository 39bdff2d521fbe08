package config

// CognitiveConfig controls autonomous background maintenance.
type CognitiveConfig struct {
	// Enabled turns the scheduled cognitive cycle on.
	Enabled bool `yaml:"enabled"`

	// Schedule is when the cycle runs: "every 30m", "at 03:00" or a cron
	// expression ("cron 0 3 * * *").
	Schedule string `yaml:"schedule"`

	// SummarizeThreshold is the timeline event count that triggers a
	// session summary.
	SummarizeThreshold int `yaml:"summarize_threshold"`

	// VisionSyncThreshold is the unsynced vision event count that triggers
	// a sync to the document store.
	VisionSyncThreshold int `yaml:"vision_sync_threshold"`

	// ScratchpadThreshold is the scratchpad document count that triggers a
	// cleanup suggestion.
	ScratchpadThreshold int `yaml:"scratchpad_threshold"`
}

func applyCognitiveDefaults(cfg *Config) {
	if cfg.Cognitive.Schedule == "" {
		cfg.Cognitive.Schedule = "every 30m"
	}
	if cfg.Cognitive.SummarizeThreshold == 0 {
		cfg.Cognitive.SummarizeThreshold = 50
	}
	if cfg.Cognitive.VisionSyncThreshold == 0 {
		cfg.Cognitive.VisionSyncThreshold = 3
	}
	if cfg.Cognitive.ScratchpadThreshold == 0 {
		cfg.Cognitive.ScratchpadThreshold = 20
	}
}
