// Package pipeline runs documents through extraction, batching, embedding and rendering.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	dombatch "github.com/kailas-cloud/vecembed/internal/domain/batch"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
	"github.com/kailas-cloud/vecembed/internal/domain/text"
	logpkg "github.com/kailas-cloud/vecembed/internal/logger"
	"github.com/kailas-cloud/vecembed/internal/metrics"
)

// Service converts document sets into embedded output.
// Batches run strictly one after another; the first failing batch aborts the run.
type Service struct {
	embed     Embedder
	batchSize int
}

// New creates a pipeline service.
func New(embed Embedder) *Service {
	return &Service{embed: embed, batchSize: dombatch.DefaultSize}
}

// WithBatchSize configures the number of documents per backend call.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// BatchSize returns the configured batch size.
func (s *Service) BatchSize() int { return s.batchSize }

// Run embeds every document on the concatenation of fields and returns the
// documents paired with their vectors, in input order.
func (s *Service) Run(ctx context.Context, docs []domain.Document, fields []string) ([]output.Embedded, error) {
	log := logpkg.FromContext(ctx)

	extract := func(doc domain.Document) string { return text.Extract(doc, fields) }
	batches := dombatch.Schedule(dombatch.Enumerate(docs, extract), s.batchSize)
	total := dombatch.Count(len(docs), s.batchSize)

	out := make([]output.Embedded, 0, len(docs))
	dims := -1
	n := 0
	for entries := range batches {
		n++
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", n, total, err)
		}

		res, err := s.embed.BatchEmbed(ctx, dombatch.Texts(entries))
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", n, total, err)
		}
		if err := domain.CheckAligned(res, len(entries)); err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", n, total, err)
		}
		metrics.BatchesTotal.Inc()

		for i, e := range entries {
			vec := res.Embeddings[i]
			if dims < 0 {
				dims = len(vec)
			} else if len(vec) != dims {
				return nil, fmt.Errorf("document %d: got %d dimensions, want %d: %w",
					e.Index, len(vec), dims, domain.ErrVectorDimMismatch)
			}
			out = append(out, output.Embedded{Index: e.Index, Document: e.Document, Vector: vec})
		}

		log.Debug("Batch embedded",
			zap.Int("batch", n),
			zap.Int("batches", total),
			zap.Int("size", len(entries)),
			zap.Int("first_index", entries[0].Index),
		)
	}

	return out, nil
}

// Convert runs the pipeline and renders the result in the given style.
// Nothing is rendered unless every batch succeeded.
func (s *Service) Convert(
	ctx context.Context, docs []domain.Document, fields []string, style output.Style,
) (any, error) {
	enc, err := output.NewEncoder(style)
	if err != nil {
		return nil, err //nolint:wrapcheck // sentinel already carries context
	}

	embedded, err := s.Run(ctx, docs, fields)
	if err != nil {
		metrics.DocumentsTotal.WithLabelValues(string(style), "failed").Add(float64(len(docs)))
		return nil, err
	}

	rendered, err := enc.Render(embedded)
	if err != nil {
		metrics.DocumentsTotal.WithLabelValues(string(style), "failed").Add(float64(len(docs)))
		return nil, fmt.Errorf("render %s: %w", style, err)
	}

	metrics.DocumentsTotal.WithLabelValues(string(style), "embedded").Add(float64(len(embedded)))
	logpkg.FromContext(ctx).Info("Documents converted",
		zap.Int("documents", len(embedded)),
		zap.Int("batch_size", s.batchSize),
		zap.String("style", string(style)),
	)
	return rendered, nil
}

// Query embeds one literal text. No fields, no batching.
func (s *Service) Query(ctx context.Context, query string) ([]float32, error) {
	vec, err := domain.EmbedOne(ctx, s.embed, query)
	if err != nil {
		return nil, err //nolint:wrapcheck // EmbedOne wraps
	}
	return vec, nil
}
