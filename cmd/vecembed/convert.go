package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
	logpkg "github.com/kailas-cloud/vecembed/internal/logger"
	"github.com/kailas-cloud/vecembed/internal/metrics"
	"github.com/kailas-cloud/vecembed/internal/usecase/pipeline"
)

// runFlags are the pipeline options shared by convert and query.
type runFlags struct {
	style       string
	batchSize   int
	backend     string
	metricsFile string
}

func (a *app) convertCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "convert [flags] FIELD...",
		Short: "Embed a JSON array of documents read from stdin",
		Long: `Read a JSON array of objects from stdin, embed the concatenated text of
the given fields for every document and write the result to stdout as
indented JSON. Nothing is written unless every batch succeeds.`,
		Example: `  vecembed convert --style point-list title overview < movies.json > points.json`,
		RunE: func(cmd *cobra.Command, fields []string) error {
			if f.metricsFile != "" {
				defer a.writeMetrics(f.metricsFile)
			}
			return a.convert(cmd, f, fields)
		},
	}
	cmd.Flags().StringVar(&f.style, "style", "", "output style: augmented-document (meilisearch) or point-list (qdrant)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "documents per backend call (default from config, 4)")
	a.backendFlags(cmd, &f)
	return cmd
}

func (a *app) backendFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "embedding backend: remote or local")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
}

func (a *app) convert(cmd *cobra.Command, f runFlags, fields []string) error {
	ctx := cmd.Context()

	styleName := a.cfg.Pipeline.Style
	if f.style != "" {
		styleName = f.style
	}
	style, err := output.ParseStyle(styleName)
	if err != nil {
		return err //nolint:wrapcheck // sentinel carries context
	}

	batchSize := a.cfg.Pipeline.BatchSize
	if cmd.Flags().Changed("batch-size") {
		if f.batchSize < 1 {
			return fmt.Errorf("--batch-size must be positive, got %d", f.batchSize)
		}
		batchSize = f.batchSize
	}

	svc, cleanup, err := a.newPipeline(cmd, f)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := domain.DecodeDocuments(a.stdin)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	a.logger.Info("Converting documents",
		zap.Int("documents", len(docs)),
		zap.Strings("fields", fields),
		zap.Int("batch_size", batchSize),
		zap.String("style", string(style)),
	)

	ctx = logpkg.With(ctx, zap.Strings("fields", fields), zap.String("style", string(style)))
	rendered, err := svc.WithBatchSize(batchSize).Convert(ctx, docs, fields, style)
	if err != nil {
		return err //nolint:wrapcheck // pipeline wraps
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rendered); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// newPipeline builds the pipeline service for the selected backend.
// The returned cleanup releases the model and the cache connection.
func (a *app) newPipeline(cmd *cobra.Command, f runFlags) (*pipeline.Service, func(), error) {
	backendName := a.cfg.Pipeline.Backend
	if f.backend != "" {
		backendName = f.backend
	}
	kind, err := domain.ParseBackend(backendName)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // sentinel carries context
	}

	b, err := buildBackend(a.cfg, kind, a.logger)
	if err != nil {
		return nil, nil, err
	}

	cache, err := openCache(cmd.Context(), a.cfg.Cache, a.logger)
	if err != nil {
		b.close()
		return nil, nil, err
	}
	if cache != nil {
		b.withCache(cache, time.Duration(a.cfg.Cache.TTLSec)*time.Second, a.logger)
	}

	cleanup := func() {
		b.close()
		if cache != nil {
			cache.Close()
		}
	}
	return pipeline.New(b.embedder).WithBatchSize(a.cfg.Pipeline.BatchSize), cleanup, nil
}

func (a *app) writeMetrics(path string) {
	if err := metrics.WriteTextfile(path); err != nil {
		a.logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}
