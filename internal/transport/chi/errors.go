package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeTooManyRetries         ErrorCode = "too_many_retries"
	CodeModelUnavailable       ErrorCode = "model_unavailable"
	CodeRequestCancelled       ErrorCode = "request_cancelled"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrUnknownStyle, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrTooManyRetries, http.StatusServiceUnavailable, CodeTooManyRetries),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrModelLoad, http.StatusServiceUnavailable, CodeModelUnavailable),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, CodeRequestCancelled),
		sentinelHandler(context.DeadlineExceeded, http.StatusServiceUnavailable, CodeRequestCancelled),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation errors describe the caller's own input and provider status errors
// carry the provider's answer, so both are returned in full.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnknownStyle) {
		return err.Error()
	}
	var pse *domain.ProviderStatusError
	if errors.As(err, &pse) {
		return pse.Error()
	}
	sentinels := []error{
		domain.ErrTooManyRetries,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrModelLoad,
		context.Canceled,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
