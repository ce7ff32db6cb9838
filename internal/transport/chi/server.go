// Package chi exposes the ingest and query pipelines over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

// Error codes carried in the "code" field of error responses.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeDimensionMismatch    = "dimension_mismatch"
	codeExtractionFailed     = "extraction_failed"
	codeEmbeddingProviderErr = "embedding_provider_error"
	codePersistenceError     = "persistence_error"
	codeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the usecase services.
type Server struct {
	ingest        Ingestor
	query         Querier
	resetter      Resetter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingestor, query Querier, resetter Resetter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		ingest:   ingest,
		query:    query,
		resetter: resetter,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch),
		sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderErr),
		sentinelHandler(domain.ErrPersistence, http.StatusInternalServerError, codePersistenceError),
	}
	return s
}

// Routes mounts all API endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/ingest/file", s.IngestFile)
	r.Post("/v1/ingest/text", s.IngestText)
	r.Post("/v1/query", s.Query)
	r.Post("/v1/reset", s.Reset)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ingestFileRequest struct {
	Path            string   `json:"path"`
	MaxTokens       int      `json:"max_tokens,omitempty"`
	OverlapFraction *float64 `json:"overlap_fraction,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type ingestTextRequest struct {
	Text            string   `json:"text"`
	Source          string   `json:"source,omitempty"`
	MaxTokens       int      `json:"max_tokens,omitempty"`
	OverlapFraction *float64 `json:"overlap_fraction,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type ingestResponse struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	ChunkCount int     `json:"chunk_count"`
	EntryIDs   []int64 `json:"entry_ids,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type queryMatch struct {
	ID       int64           `json:"id"`
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Rank     int             `json:"rank"`
	Metadata domain.Metadata `json:"metadata,omitempty"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
	Count   int          `json:"count"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// IngestFile handles POST /v1/ingest/file.
func (s *Server) IngestFile(w http.ResponseWriter, r *http.Request) {
	var req ingestFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "path is required")
		return
	}

	res, err := s.ingest.IngestFile(r.Context(), req.Path, ingestOptions(req.MaxTokens, req.OverlapFraction, req.Tags))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResultToResponse(res))
}

// IngestText handles POST /v1/ingest/text.
func (s *Server) IngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text is required")
		return
	}

	res, err := s.ingest.IngestText(
		r.Context(), req.Text, req.Source, ingestOptions(req.MaxTokens, req.OverlapFraction, req.Tags),
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResultToResponse(res))
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	results, err := s.query.Query(r.Context(), req.Query, req.K)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	matches := make([]queryMatch, len(results))
	for i, res := range results {
		matches[i] = queryMatch{
			ID:       res.Entry.ID,
			Text:     res.Entry.Text,
			Score:    res.Score,
			Rank:     res.Rank,
			Metadata: res.Entry.Metadata,
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{Matches: matches, Count: len(matches)})
}

// Reset handles POST /v1/reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	if err := s.resetter.Reset(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ingestOptions maps request fields onto usecase options. A nil overlap
// means "not provided" and defers to the service default.
func ingestOptions(maxTokens int, overlap *float64, tags []string) ingestuc.Options {
	opts := ingestuc.Options{MaxTokens: maxTokens, OverlapFraction: -1, Tags: tags}
	if overlap != nil {
		opts.OverlapFraction = *overlap
	}
	return opts
}

func ingestResultToResponse(res ingestuc.Result) ingestResponse {
	return ingestResponse{
		DocumentID: res.DocumentID,
		Source:     res.Source,
		ChunkCount: res.ChunkCount,
		EntryIDs:   res.EntryIDs,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidConfig,
		domain.ErrDimensionMismatch,
		domain.ErrExtraction,
		domain.ErrEmbeddingProviderError,
		domain.ErrPersistence,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
