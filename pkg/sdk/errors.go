package vecembed

import "github.com/kailas-cloud/vecembed/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrMissingCredential      = domain.ErrMissingCredential
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrTooManyRetries         = domain.ErrTooManyRetries
	ErrModelLoad              = domain.ErrModelLoad
	ErrUnknownStyle           = domain.ErrUnknownStyle
)
