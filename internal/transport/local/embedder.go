// Package local runs an embedding model in-process through go-embedeverything.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/metrics"
)

// Model is a loaded sentence embedding model.
type Model interface {
	Embed(texts []string) ([][]float32, error)
	Close()
}

// Loader creates a model by name. Loading may download weights.
type Loader func(name string) (Model, error)

// Embedder is the local backend. The model is loaded on the first
// BatchEmbed call and reused until Close. Access to the model handle is
// serialized, so concurrent callers never load it twice.
type Embedder struct {
	name   string
	load   Loader
	logger *zap.Logger

	mu    sync.Mutex
	model Model
}

// Config holds the local backend settings.
type Config struct {
	Model  string
	Loader Loader // defaults to EmbedEverythingLoader
	Logger *zap.Logger
}

// NewEmbedder creates the local backend without loading the model.
func NewEmbedder(cfg *Config) *Embedder {
	name := cfg.Model
	if name == "" {
		name = domain.DefaultLocalVectorConfig().Model
	}
	load := cfg.Loader
	if load == nil {
		load = EmbedEverythingLoader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{name: name, load: load, logger: logger}
}

// BatchEmbed implements domain.BatchEmbedder. Model failures are returned as-is; there is no retry.
func (e *Embedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	model, err := e.modelLocked()
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	// go-embedeverything does not support context yet
	embeddings, err := model.Embed(texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("local model %s: %w", e.name, err)
	}
	if err := domain.CheckAligned(domain.BatchEmbeddingResult{Embeddings: embeddings}, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("local model %s: %w", e.name, err)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

// modelLocked returns the cached model, loading it on first use.
// A failed load is not cached; the next call tries again.
func (e *Embedder) modelLocked() (Model, error) {
	if e.model != nil {
		return e.model, nil
	}

	start := time.Now()
	model, err := e.load(e.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", e.name, domain.ErrModelLoad, err)
	}
	elapsed := time.Since(start)

	metrics.ModelLoadDuration.WithLabelValues(e.name).Set(elapsed.Seconds())
	e.logger.Info("Local embedding model initialised",
		zap.String("model", e.name),
		zap.Duration("duration", elapsed),
	)
	e.model = model
	return model, nil
}

// Close releases the model if it was loaded.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		e.model.Close()
		e.model = nil
	}
	return nil
}

// embedEverythingModel adapts *embedder.Embedder to Model.
type embedEverythingModel struct {
	client *embedder.Embedder
}

// EmbedEverythingLoader loads a Hugging Face sentence model via go-embedeverything.
func EmbedEverythingLoader(name string) (Model, error) {
	client, err := embedder.NewEmbedder(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &embedEverythingModel{client: client}, nil
}

func (m *embedEverythingModel) Embed(texts []string) ([][]float32, error) {
	embeddings, err := m.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return embeddings, nil
}

func (m *embedEverythingModel) Close() {
	m.client.Close()
}
