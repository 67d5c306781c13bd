package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oilwell/docbot/config"
)

type openAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(opts Options) Embedder {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		dimension: opts.Dimension,
	}
}

func (e *openAIEmbedder) Model() string {
	return modelID(config.ProviderOpenAI, e.model)
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}

	return orderEmbeddings(resp.Data, len(texts), e.dimension)
}

// orderEmbeddings places each returned vector at its declared input index.
// The API carries an index per datum because response order is not
// guaranteed to match input order.
func orderEmbeddings(data []openai.Embedding, want, dimension int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("openai embedding count mismatch: sent %d inputs, got %d vectors", want, len(data))
	}

	results := make([][]float32, want)
	for _, datum := range data {
		if datum.Index < 0 || datum.Index >= want {
			return nil, fmt.Errorf("openai embedding index %d out of range for %d inputs", datum.Index, want)
		}
		if results[datum.Index] != nil {
			return nil, fmt.Errorf("openai returned duplicate embedding index %d", datum.Index)
		}
		if dimension > 0 && len(datum.Embedding) != dimension {
			return nil, fmt.Errorf("openai embedding dimension mismatch: expected %d, got %d", dimension, len(datum.Embedding))
		}
		results[datum.Index] = datum.Embedding
	}

	return results, nil
}
