// Package chi exposes the conversion pipeline over HTTP.
package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
	"github.com/kailas-cloud/vecembed/internal/domain/output"
	"github.com/kailas-cloud/vecembed/internal/metrics"
	healthuc "github.com/kailas-cloud/vecembed/internal/usecase/health"
)

// Pipeline is the conversion use case served over HTTP.
type Pipeline interface {
	Convert(ctx context.Context, docs []domain.Document, fields []string, style output.Style) (any, error)
	Query(ctx context.Context, text string) ([]float32, error)
}

// ConvertRequest is the body of POST /v1/convert.
type ConvertRequest struct {
	Fields    []string        `json:"fields"`
	Style     string          `json:"style,omitempty"`
	Documents json.RawMessage `json:"documents"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Text string `json:"text"`
}

// Server handles the HTTP API. Every request is one independent pipeline run.
type Server struct {
	pipeline      Pipeline
	health        *healthuc.Service
	defaultStyle  output.Style
	maxBodyBytes  int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Config holds server options.
type Config struct {
	DefaultStyle output.Style
	MaxBodyBytes int64
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, health *healthuc.Service, cfg Config, logger *zap.Logger) *Server {
	if cfg.DefaultStyle == "" {
		cfg.DefaultStyle = output.StyleAugmentedDocument
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline:      pipeline,
		health:        health,
		defaultStyle:  cfg.DefaultStyle,
		maxBodyBytes:  cfg.MaxBodyBytes,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Router builds the chi router with the middleware stack and all routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/convert", s.Convert)
		r.Post("/query", s.Query)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Convert handles POST /v1/convert.
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !s.decode(w, r, &req) {
		return
	}

	style := s.defaultStyle
	if req.Style != "" {
		parsed, err := output.ParseStyle(req.Style)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		style = parsed
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "documents is required")
		return
	}

	docs, err := domain.DecodeDocuments(bytes.NewReader(req.Documents))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	rendered, err := s.pipeline.Convert(r.Context(), docs, req.Fields, style)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rendered)
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	vec, err := s.pipeline.Query(r.Context(), req.Text)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vec)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads a JSON body into v, answering 400/413 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if s.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
