package retrieval

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/digital-twin-core/server/internal/agent/model"
)

// Embedder turns text into a dense vector for nearest-neighbor lookup.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenaiEmbedder generates embeddings through the Gemini embedding API.
type GenaiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGenaiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) *GenaiEmbedder {
	return &GenaiEmbedder{client: client, model: cfg.Model}
}

func (e *GenaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed content: empty embedding for model %s", e.model)
	}
	return resp.Embeddings[0].Values, nil
}

var _ Embedder = (*GenaiEmbedder)(nil)
