package domain

import "fmt"

// Backend selects the embedding implementation.
type Backend string

// Supported backends.
const (
	BackendRemote Backend = "remote"
	BackendLocal  Backend = "local"
)

// ParseBackend validates a backend selector. "openai" and "all-mini-lm-l6-v2"
// are accepted as aliases for compatibility with older tooling.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case string(BackendRemote), "openai", "open-ai":
		return BackendRemote, nil
	case string(BackendLocal), "all-mini-lm-l6-v2":
		return BackendLocal, nil
	default:
		return "", fmt.Errorf("%w %q (want remote or local)", ErrUnknownBackend, s)
	}
}

// VectorConfig holds the default model settings of a backend.
type VectorConfig struct {
	Model      string
	Dimensions int
}

// DefaultRemoteVectorConfig returns the hosted model used by the remote backend.
func DefaultRemoteVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "text-embedding-ada-002",
		Dimensions: 1536,
	}
}

// DefaultLocalVectorConfig returns the in-process sentence model used by the local backend.
func DefaultLocalVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions: 384,
	}
}
