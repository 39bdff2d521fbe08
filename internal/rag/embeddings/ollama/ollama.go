// Package ollama provides an embedding provider backed by a local Ollama
// instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yaya56vv/cortex/internal/rag/embeddings"
)

// Provider implements embeddings.Provider using Ollama.
type Provider struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

var _ embeddings.Provider = (*Provider)(nil)

// Config contains configuration for the Ollama provider.
type Config struct {
	BaseURL string // Default: http://localhost:11434
	Model   string // Default: all-minilm

	// Dimension overrides the model's known dimension when set.
	Dimension int

	// Timeout bounds one embedding request. Default: 30s.
	Timeout time.Duration
}

// New creates a new Ollama embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = modelDimension(cfg.Model)
	}

	return &Provider{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func modelDimension(model string) int {
	switch model {
	case "all-minilm":
		return 384
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	default:
		return 384
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ollama"
}

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	return p.dimension
}

// MaxBatchSize returns the maximum number of texts per batch. The Ollama
// embeddings endpoint takes one prompt per request, so batches are iterated.
func (p *Provider) MaxBatchSize() int {
	return 100
}

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embeddingRequest{
		Model:  p.model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("ollama returned status %d and failed to read body: %w", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", p.model)
	}

	return result.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts, one request per text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, text := range texts {
		embedding, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = embedding
	}

	return out, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}
