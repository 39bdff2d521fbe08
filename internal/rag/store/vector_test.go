package store

import (
	"bytes"
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.5, -1.25, 3, 0}
	decoded := decodeEmbedding(encodeEmbedding(vec))
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d components, got %d", len(vec), len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("component %d = %v, want %v", i, decoded[i], vec[i])
		}
	}
}

func TestEncodeEmbeddingLittleEndian(t *testing.T) {
	got := encodeEmbedding([]float32{1.0})
	want := []byte{0x00, 0x00, 0x80, 0x3f}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded bytes = %x, want %x", got, want)
	}
}

func TestEncodeEmbeddingEmpty(t *testing.T) {
	if got := encodeEmbedding(nil); got != nil {
		t.Errorf("expected nil for empty vector, got %v", got)
	}
}

func TestDecodeEmbeddingMalformed(t *testing.T) {
	if got := decodeEmbedding(nil); got != nil {
		t.Errorf("expected nil for empty blob, got %v", got)
	}
	if got := decodeEmbedding([]byte{1, 2, 3}); got != nil {
		t.Errorf("expected nil for truncated blob, got %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"both empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
