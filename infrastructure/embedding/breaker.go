package embedding

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"reasongraph-engine/domain/services"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// BreakerConfig holds circuit breaker settings for the provider boundary.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns settings tuned for a slow remote embedding
// backend.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerProvider wraps an EmbeddingProvider with a circuit breaker so that
// a failing backend short-circuits instead of stalling every evaluation.
// When the circuit is open, Embed fails fast with a retryable provider
// error; the evaluator then falls back to its cached result.
type BreakerProvider struct {
	inner   services.EmbeddingProvider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps the provider with the given breaker settings.
func NewBreakerProvider(inner services.EmbeddingProvider, config BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Embedding circuit breaker state changed",
				zap.String("name", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

// Embed executes the wrapped call through the breaker.
func (p *BreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, pkgerrors.NewProvider("embedding backend unavailable", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

// CosineSimilarity delegates to the wrapped provider; pure math never
// passes through the breaker.
func (p *BreakerProvider) CosineSimilarity(a, b []float32) float32 {
	return p.inner.CosineSimilarity(a, b)
}
