// Package embedding provides EmbeddingProvider implementations: a
// deterministic local provider, an OpenAI-backed provider, and a
// circuit-breaker wrapper for any provider.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"reasongraph-engine/domain/services"
)

// DefaultLocalDimensions is the vector size of the local provider.
const DefaultLocalDimensions = 128

// LocalProvider embeds text as a hashed bag-of-words vector. It is fully
// deterministic, never fails, and needs no network, which makes it the
// default for tests and provider-less operation. Texts sharing vocabulary
// get high cosine similarity; disjoint texts score near zero.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider creates a provider with the given vector size.
func NewLocalProvider(dimensions int) *LocalProvider {
	if dimensions <= 0 {
		dimensions = DefaultLocalDimensions
	}
	return &LocalProvider{dimensions: dimensions}
}

// Embed hashes each token into a vector bucket and L2-normalizes the
// result.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dimensions)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%p.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of two vectors.
func (p *LocalProvider) CosineSimilarity(a, b []float32) float32 {
	return services.CosineSimilarity(a, b)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
