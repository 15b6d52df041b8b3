package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/metrics"
)

// Embedder is the remote backend: a hosted OpenAI-compatible embeddings API.
// One BatchEmbed call sends all its texts in a single request and may issue
// several physical requests according to its RetryPolicy.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	retry      RetryPolicy
	sleeper    Sleeper
	logger     *zap.Logger
}

// Config holds the remote backend settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Timeout    time.Duration
	Retry      RetryPolicy
	Sleeper    Sleeper
	Logger     *zap.Logger
}

// NewEmbedder creates the remote backend. The API key is checked here, before
// any network activity.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("remote backend requires an API key: %w", domain.ErrMissingCredential)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: captureTransport{base: http.DefaultTransport},
	}

	model := cfg.Model
	if model == "" {
		model = domain.DefaultRemoteVectorConfig().Model
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	var sleeper Sleeper = timerSleeper{}
	if cfg.Sleeper != nil {
		sleeper = cfg.Sleeper
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   provider,
		retry:      cfg.Retry.withDefaults(),
		sleeper:    sleeper,
		logger:     logger,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
//
// 429 and 503 answers back off and resend the same texts. A 400 answer is
// taken as "input too long": every text is cut to 80% of the longest one and
// the request is resent at once. A 400 with another cause keeps shrinking
// the texts until MaxAttempts is reached. Any other status, a transport
// failure or an undecodable answer ends the call.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	state := newRetryState(e.retry, texts)
	for state.next() {
		resp, raw, err := e.send(ctx, state.texts)
		if err == nil {
			return e.collect(resp, len(texts))
		}

		status, body, ok := statusOf(err, raw)
		if !ok {
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "transport").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"cannot query embeddings API: %w: %w", domain.ErrEmbeddingProviderError, err)
		}

		switch status {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			if state.last() {
				continue
			}
			wait := state.backoff()
			e.logger.Warn("Embedding API overloaded, retrying",
				zap.String("provider", e.provider),
				zap.Int("status", status),
				zap.Int("attempt", state.attempt),
				zap.Duration("wait", wait),
				zap.String("body", body),
			)
			metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider, "rate_limited").Inc()
			metrics.EmbeddingBackoffSeconds.WithLabelValues(e.provider).Observe(wait.Seconds())
			if err := e.sleeper.Sleep(ctx, wait); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding backoff: %w", err)
			}

		case http.StatusBadRequest:
			maxLength, cutAt := state.truncate()
			e.logger.Warn("Embedding API rejected the batch, truncating texts",
				zap.String("provider", e.provider),
				zap.Int("attempt", state.attempt),
				zap.Int("max_length", maxLength),
				zap.Int("cut_at", cutAt),
				zap.String("body", body),
			)
			metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider, "truncated").Inc()

		default:
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "status").Inc()
			return domain.BatchEmbeddingResult{}, domain.NewProviderStatus(status, body)
		}
	}

	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "too_many_retries").Inc()
	return domain.BatchEmbeddingResult{}, fmt.Errorf(
		"cannot query embeddings API after %d attempts: %w", state.attempt, domain.ErrTooManyRetries)
}

// send issues one physical request and records transport metrics.
// On a 4xx/5xx answer it also returns the raw response body.
func (e *Embedder) send(ctx context.Context, texts []string) (openai.EmbeddingResponse, []byte, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
		User:  e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	ctx, raw := withErrorBody(ctx)
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), requestStatus(err)).Inc()

	if err != nil {
		return openai.EmbeddingResponse{}, raw.data, err //nolint:wrapcheck // classified by BatchEmbed
	}
	return resp, nil, nil
}

// collect maps the response onto input positions. Vectors are placed by the
// provider's index field when it forms a valid permutation, else by position.
func (e *Embedder) collect(resp openai.EmbeddingResponse, n int) (domain.BatchEmbeddingResult, error) {
	if len(resp.Data) != n {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			n, len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	embeddings := make([][]float32, n)
	seen := make([]bool, n)
	indexed := true
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n || seen[d.Index] {
			indexed = false
			break
		}
		seen[d.Index] = true
		embeddings[d.Index] = d.Embedding
	}
	if !indexed {
		for i, d := range resp.Data {
			embeddings[i] = d.Embedding
		}
	}

	promptTokens := resp.Usage.PromptTokens
	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(totalTokens))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// statusOf extracts the HTTP status and the response body from a client
// error. raw is the captured body; when it is missing the decoded message
// stands in. ok is false for transport failures that carry no HTTP answer.
func statusOf(err error, raw []byte) (status int, body string, ok bool) {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0:
		status, body = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0:
		status, body = reqErr.HTTPStatusCode, string(reqErr.Body)
	default:
		return 0, "", false
	}
	if len(raw) > 0 {
		body = string(bytes.TrimSpace(raw))
	}
	return status, body, true
}

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	status, _, ok := statusOf(err, nil)
	switch {
	case !ok:
		return "transport_error"
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return "rate_limited"
	case status == http.StatusBadRequest:
		return "bad_request"
	default:
		return "error"
	}
}
