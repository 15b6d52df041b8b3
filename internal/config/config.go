package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
)

// APIKeyEnv is the environment variable read when embedding.remote.api_key is empty.
const APIKeyEnv = "OPENAI_API_KEY"

// Config holds the vecembed configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// EmbeddingConfig holds backend settings.
type EmbeddingConfig struct {
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
}

// RemoteConfig holds the hosted embeddings API settings.
type RemoteConfig struct {
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Provider   string      `yaml:"provider"` // metrics/log label
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"` // 0 = model default, not sent
	TimeoutSec int         `yaml:"timeout_sec"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig tunes the remote retry loop.
type RetryConfig struct {
	InitialWaitMs   int `yaml:"initial_wait_ms"`
	Factor          int `yaml:"factor"`
	MaxWaitSec      int `yaml:"max_wait_sec"` // 0 = unbounded
	MaxAttempts     int `yaml:"max_attempts"`
	TruncatePercent int `yaml:"truncate_percent"`
}

// LocalConfig holds the in-process model settings.
type LocalConfig struct {
	Model string `yaml:"model"`
}

// PipelineConfig holds conversion defaults; command-line flags override them.
type PipelineConfig struct {
	BatchSize int    `yaml:"batch_size"`
	Style     string `yaml:"style"`
	Backend   string `yaml:"backend"`
}

// CacheConfig holds embedding cache settings. The cache is off when addrs is empty.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache store is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// HTTPConfig holds HTTP server settings for serve mode.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// AuthConfig holds API authentication settings for serve mode.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults, so the converter runs without any file.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "cli".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "cli"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	remote := &c.Embedding.Remote
	if remote.APIKey == "" {
		remote.APIKey = os.Getenv(APIKeyEnv)
	}
	if remote.Provider == "" {
		remote.Provider = "openai"
	}
	if remote.Model == "" {
		remote.Model = domain.DefaultRemoteVectorConfig().Model
	}
	if remote.TimeoutSec <= 0 {
		remote.TimeoutSec = 60
	}
	if remote.Retry.InitialWaitMs <= 0 {
		remote.Retry.InitialWaitMs = 2000
	}
	if remote.Retry.Factor <= 0 {
		remote.Retry.Factor = 2
	}
	if remote.Retry.MaxAttempts <= 0 {
		remote.Retry.MaxAttempts = 100
	}
	if remote.Retry.TruncatePercent <= 0 {
		remote.Retry.TruncatePercent = 80
	}
	if c.Embedding.Local.Model == "" {
		c.Embedding.Local.Model = domain.DefaultLocalVectorConfig().Model
	}

	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 4
	}
	if c.Pipeline.Style == "" {
		c.Pipeline.Style = string(output.StyleAugmentedDocument)
	}
	if c.Pipeline.Backend == "" {
		c.Pipeline.Backend = string(domain.BackendRemote)
	}

	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// a remote run may sit in backoff for minutes
		c.HTTP.WriteTimeoutSec = 600
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
}

// Validate checks the configuration for correctness. The API key is not
// checked here: it is only required when the remote backend is built.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if _, err := output.ParseStyle(c.Pipeline.Style); err != nil {
		return fmt.Errorf("pipeline.style: %w", err)
	}
	if _, err := domain.ParseBackend(c.Pipeline.Backend); err != nil {
		return fmt.Errorf("pipeline.backend: %w", err)
	}

	retry := c.Embedding.Remote.Retry
	if retry.TruncatePercent >= 100 {
		return fmt.Errorf("embedding.remote.retry.truncate_percent must be below 100, got %d", retry.TruncatePercent)
	}
	if retry.MaxWaitSec < 0 {
		return errors.New("embedding.remote.retry.max_wait_sec must not be negative")
	}
	if c.Embedding.Remote.Dimensions < 0 {
		return errors.New("embedding.remote.dimensions must not be negative")
	}
	if c.Cache.TTLSec < 0 {
		return errors.New("cache.ttl_sec must not be negative")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
