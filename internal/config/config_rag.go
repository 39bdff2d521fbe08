package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// RAGConfig controls document ingestion and retrieval.
type RAGConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// RetentionOverrides replaces the built-in retention (in days) for a
	// dataset. A zero value means "never expire".
	RetentionOverrides map[string]int `yaml:"retention_overrides"`

	// Watch ingests files dropped into a local folder.
	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig controls the drop-folder ingestion watcher.
type WatchConfig struct {
	// Enabled turns the watcher on.
	Enabled bool `yaml:"enabled"`

	// Dir is the folder to watch. Defaults to <data_dir>/inbox.
	Dir string `yaml:"dir"`

	// Dataset receives ingested files. Defaults to scratchpad.
	Dataset string `yaml:"dataset"`

	// Debounce delays ingestion after the last write to a file.
	Debounce time.Duration `yaml:"debounce"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	// Provider is "ollama" (default) or "openai".
	Provider string `yaml:"provider"`

	// BaseURL is the embedding service endpoint.
	BaseURL string `yaml:"base_url"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// APIKey authenticates to hosted providers.
	APIKey string `yaml:"api_key"`

	// Dimension is the embedding vector width. Must match the model.
	Dimension int `yaml:"dimension"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout"`
}

func applyRAGDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.Watch.Dir == "" {
		cfg.RAG.Watch.Dir = filepath.Join(cfg.DataDir, "inbox")
	}
	if cfg.RAG.Watch.Dataset == "" {
		cfg.RAG.Watch.Dataset = "scratchpad"
	}
	if cfg.RAG.Watch.Debounce == 0 {
		cfg.RAG.Watch.Debounce = 2 * time.Second
	}
}

func applyEmbeddingsDefaults(cfg *Config) {
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "ollama"
	}
	if cfg.Embeddings.BaseURL == "" {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
		default:
			cfg.Embeddings.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.Embeddings.Model == "" {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.Model = "text-embedding-3-small"
		default:
			cfg.Embeddings.Model = "all-minilm"
		}
	}
	if cfg.Embeddings.Dimension == 0 {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.Dimension = 1536
		default:
			cfg.Embeddings.Dimension = 384
		}
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 30 * time.Second
	}
}

func (c *RAGConfig) validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap %d must be in [0, chunk_size)", c.ChunkOverlap)
	}
	for dataset, days := range c.RetentionOverrides {
		if days < 0 {
			return fmt.Errorf("rag.retention_overrides.%s must not be negative", dataset)
		}
	}
	return nil
}

func (c *EmbeddingsConfig) validate() error {
	switch c.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embeddings.provider %q is not supported (want ollama or openai)", c.Provider)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("embeddings.dimension must be positive")
	}
	return nil
}
