package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/config"
	"github.com/kailas-cloud/vecembed/internal/db"
	dbValkey "github.com/kailas-cloud/vecembed/internal/db/valkey"
	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/metrics"
	"github.com/kailas-cloud/vecembed/internal/repository/embcache"
	localEmb "github.com/kailas-cloud/vecembed/internal/transport/local"
	openaiEmb "github.com/kailas-cloud/vecembed/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecembed/internal/usecase/embedding"
)

// backend is an assembled embedder chain.
type backend struct {
	embedder domain.BatchEmbedder
	health   domain.HealthChecker
	close    func()
	cacheKey string
}

// buildBackend assembles base -> Instrumented. It makes no network calls,
// so credential errors surface before the cache is dialled.
func buildBackend(cfg config.Config, kind domain.Backend, logger *zap.Logger) (*backend, error) {
	var (
		base     domain.BatchEmbedder
		provider string
		model    string
		closeFn  = func() {}
	)

	switch kind {
	case domain.BackendRemote:
		remote := cfg.Embedding.Remote
		emb, err := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     remote.APIKey,
			BaseURL:    remote.BaseURL,
			Model:      remote.Model,
			Dimensions: remote.Dimensions,
			Provider:   remote.Provider,
			Timeout:    time.Duration(remote.TimeoutSec) * time.Second,
			Retry:      retryPolicy(remote.Retry),
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("remote backend: %w", err)
		}
		base, provider, model = emb, remote.Provider, remote.Model

	case domain.BackendLocal:
		emb := localEmb.NewEmbedder(&localEmb.Config{
			Model:  cfg.Embedding.Local.Model,
			Logger: logger,
		})
		base, provider, model = emb, "local", cfg.Embedding.Local.Model
		closeFn = func() { _ = emb.Close() }

	default:
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownBackend, kind)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(base, provider, model, logger)

	logger.Info("Embedding backend ready",
		zap.String("backend", string(kind)),
		zap.String("provider", provider),
		zap.String("model", model),
	)

	return &backend{
		embedder: instrumented,
		health:   instrumented,
		close:    closeFn,
		cacheKey: provider + "/" + model,
	}, nil
}

// withCache puts the cache outermost so hits never reach the backend or its logs.
func (b *backend) withCache(store db.KVStore, ttl time.Duration, logger *zap.Logger) {
	b.embedder = embcache.New(b.embedder, store, b.cacheKey, ttl, metrics.EmbeddingCacheTotal, logger)
}

func retryPolicy(rc config.RetryConfig) openaiEmb.RetryPolicy {
	return openaiEmb.RetryPolicy{
		InitialWait:     time.Duration(rc.InitialWaitMs) * time.Millisecond,
		Factor:          rc.Factor,
		MaxWait:         time.Duration(rc.MaxWaitSec) * time.Second,
		MaxAttempts:     rc.MaxAttempts,
		TruncatePercent: rc.TruncatePercent,
	}
}

// openCache connects to the cache store when one is configured.
// It returns (nil, nil) when the cache is disabled.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (db.Store, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Addrs))
	return store, nil
}
