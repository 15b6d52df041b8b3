package domain

import (
	"context"
	"fmt"
)

// BatchEmbedder turns an ordered batch of texts into index-aligned vectors.
// Embeddings[i] always corresponds to texts[i].
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BatchEmbeddingResult carries the vectors of one batch and aggregate token usage.
// Token counts stay zero for backends that do not report them.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedOne vectorizes a single literal text through a batch embedder.
// Query mode is a batch of one.
func EmbedOne(ctx context.Context, e BatchEmbedder, text string) ([]float32, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(res.Embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d: %w",
			len(res.Embeddings), ErrEmbeddingProviderError)
	}
	return res.Embeddings[0], nil
}

// CheckAligned verifies that a backend answered one vector per text.
func CheckAligned(res BatchEmbeddingResult, texts int) error {
	if len(res.Embeddings) != texts {
		return fmt.Errorf("expected %d embeddings, got %d: %w",
			texts, len(res.Embeddings), ErrEmbeddingProviderError)
	}
	return nil
}
