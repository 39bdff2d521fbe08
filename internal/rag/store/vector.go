package store

import (
	"encoding/binary"
	"math"
)

// encodeEmbedding packs a vector as little-endian IEEE 754 float32 bytes,
// 4 bytes per component.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

// decodeEmbedding unpacks little-endian float32 bytes. Malformed blobs
// (length not a multiple of 4) decode to nil.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}

// cosineSimilarity computes the cosine of the angle between two vectors,
// in [-1, 1]. Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
