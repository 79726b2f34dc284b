package embedding

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"reasongraph-engine/domain/services"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// OpenAIProvider calls the OpenAI embeddings API. Failures surface as
// retryable provider errors; callers should bound calls with a deadline and
// wrap the provider with a circuit breaker.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIProvider creates a provider using the given API key. An empty
// model defaults to text-embedding-3-small.
func NewOpenAIProvider(apiKey string, model openai.EmbeddingModel) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, pkgerrors.NewConfiguration("OpenAI API key is required")
	}
	if model == "" {
		model = openai.SmallEmbedding3
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Embed requests an embedding for the text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, pkgerrors.NewProvider("embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, pkgerrors.NewProvider("embedding response contained no data", nil)
	}
	return resp.Data[0].Embedding, nil
}

// CosineSimilarity returns the cosine of two vectors.
func (p *OpenAIProvider) CosineSimilarity(a, b []float32) float32 {
	return services.CosineSimilarity(a, b)
}
