package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals input that is not a JSON array of objects.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingCredential signals a remote backend configured without an API key.
	ErrMissingCredential = errors.New("missing credential")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrTooManyRetries signals an exhausted retry budget.
	ErrTooManyRetries = errors.New("too many retries")
	// ErrModelLoad signals a local model that could not be initialised.
	ErrModelLoad = errors.New("model load failed")
	// ErrUnknownBackend signals an unsupported backend selector.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrUnknownStyle signals an unsupported output style selector.
	ErrUnknownStyle = errors.New("unknown output style")
)

// ProviderStatusError wraps ErrEmbeddingProviderError with the HTTP status and
// response body of a terminal provider answer.
type ProviderStatusError struct {
	StatusCode int
	Body       string
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("%s: %d status code: %s", ErrEmbeddingProviderError.Error(), e.StatusCode, e.Body)
}

func (e *ProviderStatusError) Unwrap() error { return ErrEmbeddingProviderError }

// NewProviderStatus creates a provider status error.
func NewProviderStatus(statusCode int, body string) error {
	return &ProviderStatusError{StatusCode: statusCode, Body: body}
}
