package services

import (
	"context"
	"math"
)

// EmbeddingProvider is the boundary to an external embedding/similarity
// backend. It may be slow or remote; callers must pass a context with a
// deadline and treat failures as recoverable.
type EmbeddingProvider interface {
	// Embed returns a fixed-dimension vector for the text
	Embed(ctx context.Context, text string) ([]float32, error)

	// CosineSimilarity returns the cosine of two vectors, in [-1, 1]
	CosineSimilarity(a, b []float32) float32
}

// CosineSimilarity is the shared implementation providers can delegate to.
// Mismatched or zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
