package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbedder produces embeddings through a local Ollama model.
type OllamaEmbedder struct {
	llm *ollama.LLM
}

// NewOllamaEmbedder creates an embedder backed by the given embedding model.
func NewOllamaEmbedder(serverURL, model string) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &OllamaEmbedder{llm: llm}, nil
}

// EmbedText embeds a single text.
func (e *OllamaEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding model returned no vectors")
	}
	return vectors[0], nil
}
