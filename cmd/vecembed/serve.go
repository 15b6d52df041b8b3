package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
	"github.com/kailas-cloud/vecembed/internal/metrics"
	chiTransport "github.com/kailas-cloud/vecembed/internal/transport/chi"
	healthuc "github.com/kailas-cloud/vecembed/internal/usecase/health"
	"github.com/kailas-cloud/vecembed/internal/usecase/pipeline"
	"github.com/kailas-cloud/vecembed/internal/version"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		backendName string
		port        int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if backendName != "" {
				a.cfg.Pipeline.Backend = backendName
			}
			if cmd.Flags().Changed("port") {
				a.cfg.HTTP.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&backendName, "backend", "", "embedding backend: remote or local")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config, 8080)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	kind, err := domain.ParseBackend(cfg.Pipeline.Backend)
	if err != nil {
		return err //nolint:wrapcheck // sentinel carries context
	}
	style, err := output.ParseStyle(cfg.Pipeline.Style)
	if err != nil {
		return err //nolint:wrapcheck // sentinel carries context
	}

	metrics.RegisterHTTPMetrics()

	b, err := buildBackend(cfg, kind, logger)
	if err != nil {
		return err
	}
	defer b.close()

	cache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	var pinger healthuc.CachePinger
	if cache != nil {
		defer cache.Close()
		pinger = cache
		b.withCache(cache, time.Duration(cfg.Cache.TTLSec)*time.Second, logger)
	}

	svc := pipeline.New(b.embedder).WithBatchSize(cfg.Pipeline.BatchSize)
	healthSvc := healthuc.New(pinger, b.health)
	server := chiTransport.NewServer(svc, healthSvc, chiTransport.Config{
		DefaultStyle: style,
		MaxBodyBytes: int64(cfg.HTTP.MaxBodyBytes),
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("No API keys configured, HTTP API is unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.String("version", version.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
