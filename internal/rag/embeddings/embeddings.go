// Package embeddings defines the pluggable embedding provider contract used
// by the document store. Embeddings are computed synchronously on the write
// path; a provider failure must abort the write, never half-apply it.
package embeddings

import (
	"context"
	"math"
)

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts (more efficient).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Dimension returns the embedding dimension.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty or the dimensions disagree.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
