package vecembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/db"
	dbValkey "github.com/kailas-cloud/vecembed/internal/db/valkey"
	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
	"github.com/kailas-cloud/vecembed/internal/metrics"
	"github.com/kailas-cloud/vecembed/internal/repository/embcache"
	localEmb "github.com/kailas-cloud/vecembed/internal/transport/local"
	openaiEmb "github.com/kailas-cloud/vecembed/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecembed/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecembed/internal/usecase/health"
	"github.com/kailas-cloud/vecembed/internal/usecase/pipeline"
)

const defaultReadinessTimeout = 10 * time.Second

// Document is one input JSON object; field order and values are preserved.
type Document = domain.Document

// Style selects the output shape.
type Style = output.Style

// Output styles.
const (
	StyleAugmentedDocument = output.StyleAugmentedDocument
	StylePointList         = output.StylePointList
)

// DecodeDocuments reads a JSON array of objects.
func DecodeDocuments(r io.Reader) ([]Document, error) {
	docs, err := domain.DecodeDocuments(r)
	if err != nil {
		return nil, fmt.Errorf("vecembed: %w", err)
	}
	return docs, nil
}

// pipelineUseCase is the internal interface for the conversion pipeline.
type pipelineUseCase interface {
	Convert(ctx context.Context, docs []domain.Document, fields []string, style output.Style) (any, error)
	Query(ctx context.Context, text string) ([]float32, error)
}

// Client is the vecembed SDK entry point. It is safe for concurrent use;
// each call is an independent pipeline run.
type Client struct {
	store     db.Store
	pipeline  pipelineUseCase
	healthSvc healthUseCase
	closers   []func()
	obs       *observer
}

// New creates a Client. Exactly one backend is used: WithEmbedder, else
// WithLocalModel, else WithOpenAI. The provided context is used for the
// cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.batchSize < 0 {
		return nil, fmt.Errorf("vecembed: batch size must be positive, got %d", cfg.batchSize)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	base, provider, model, closeBase, err := createBackend(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if closeBase != nil {
		c.closers = append(c.closers, closeBase)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(base, provider, model, zap.NewNop())
	var emb domain.BatchEmbedder = instrumented
	var pinger healthuc.CachePinger

	if len(cfg.cacheAddrs) > 0 {
		store, err := createStore(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.store = store
		pinger = store
		emb = embcache.New(instrumented, store, provider+"/"+model, cfg.cacheTTL,
			metrics.EmbeddingCacheTotal, zap.NewNop())
	}

	c.pipeline = pipeline.New(emb).WithBatchSize(cfg.batchSize)
	c.healthSvc = healthuc.New(pinger, instrumented)
	return c, nil
}

// createBackend picks the embedding backend from the options.
func createBackend(cfg *clientConfig) (
	emb domain.BatchEmbedder, provider, model string, closeFn func(), err error,
) {
	switch {
	case cfg.embedder != nil:
		return &embedderAdapter{inner: cfg.embedder}, "custom", "custom", nil, nil

	case cfg.localModel != "":
		local := localEmb.NewEmbedder(&localEmb.Config{Model: cfg.localModel})
		return local, "local", cfg.localModel, func() { _ = local.Close() }, nil

	case cfg.remote:
		remote, err := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Timeout:    cfg.timeout,
			Retry:      cfg.retry,
		})
		if err != nil {
			return nil, "", "", nil, fmt.Errorf("vecembed: %w", err)
		}
		name := cfg.model
		if name == "" {
			name = domain.DefaultRemoteVectorConfig().Model
		}
		return remote, "openai", name, nil, nil

	default:
		return nil, "", "", nil, errors.New(
			"vecembed: embedding backend required (use WithOpenAI, WithLocalModel or WithEmbedder)",
		)
	}
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	s, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("vecembed: create cache store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("vecembed: cache not ready: %w", err)
	}
	return s, nil
}

// Close releases the local model and the cache connection.
func (c *Client) Close() {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
}

// Convert embeds docs on the concatenation of fields and renders them in style.
// The result is JSON-serializable. Nothing is returned unless every batch succeeds.
func (c *Client) Convert(ctx context.Context, docs []Document, fields []string, style Style) (out any, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("convert", start, err, "documents", len(docs))
		c.obs.documents(len(docs), err)
	}()

	out, err = c.pipeline.Convert(ctx, docs, fields, style)
	if err != nil {
		return nil, fmt.Errorf("vecembed: convert: %w", err)
	}
	return out, nil
}

// ConvertJSON reads a JSON array of documents from r and writes the
// indented result to w.
func (c *Client) ConvertJSON(ctx context.Context, r io.Reader, w io.Writer, fields []string, style Style) error {
	docs, err := DecodeDocuments(r)
	if err != nil {
		return err
	}
	out, err := c.Convert(ctx, docs, fields, style)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("vecembed: write output: %w", err)
	}
	return nil
}

// Query embeds a single literal text.
func (c *Client) Query(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	vec, err = c.pipeline.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vecembed: query: %w", err)
	}
	return vec, nil
}
