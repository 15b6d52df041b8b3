package health

import "context"

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding backend availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
