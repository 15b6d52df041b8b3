package vecembed

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	openaiEmb "github.com/kailas-cloud/vecembed/internal/transport/openai"
)

// RetryPolicy controls how the remote backend reacts to 429, 503 and 400 answers.
type RetryPolicy = openaiEmb.RetryPolicy

// DefaultRetryPolicy returns 2s doubling waits, 100 attempts and 80% truncation.
func DefaultRetryPolicy() RetryPolicy { return openaiEmb.DefaultRetryPolicy() }

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	remote     bool
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	timeout    time.Duration
	retry      RetryPolicy

	localModel string
	embedder   BatchEmbedder

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	batchSize int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithOpenAI selects the remote backend with the given API key.
// An empty key fails New with ErrMissingCredential.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.remote = true
		c.apiKey = apiKey
	})
}

// WithBaseURL points the remote backend at another OpenAI-compatible API.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithModel sets the remote model. dimensions 0 keeps the model default.
// Defaults to text-embedding-ada-002.
func WithModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = model
		c.dimensions = dimensions
	})
}

// WithTimeout bounds every physical request of the remote backend.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithRetryPolicy overrides the remote backend retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.retry = p
	})
}

// WithLocalModel selects the in-process backend with the given model name.
// The model is loaded on the first embedding call.
func WithLocalModel(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.localModel = name
	})
}

// WithEmbedder plugs in a caller-supplied backend. It takes precedence over
// WithOpenAI and WithLocalModel.
func WithEmbedder(e BatchEmbedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithValkeyCache caches vectors in Valkey or Redis, keyed by model and text.
// ttl 0 keeps entries forever.
func WithValkeyCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithBatchSize sets the number of documents per backend call.
// Default: 4.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
