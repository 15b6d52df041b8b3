package pipeline

import (
	"context"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// Embedder vectorizes an ordered batch of texts.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
