// Package chi serves the retrieval API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/modeldex/internal/logger"
	"github.com/kailas-cloud/modeldex/internal/metrics"
	healthuc "github.com/kailas-cloud/modeldex/internal/usecase/health"
)

// maxBodyBytes bounds request bodies; cluster requests carry whole result sets.
const maxBodyBytes = 4 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP handlers.
type Server struct {
	search        Searcher
	cluster       Clusterer
	process       Processor
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	cluster Clusterer,
	process Processor,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		cluster: cluster,
		process: process,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		configErrorHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	}
	return s
}

// Handler returns the router with the middleware stack applied. Requests
// need one of apiKeys as a Bearer token unless apiKeys is empty.
func (s *Server) Handler(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(tracingMiddleware())
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.HTTPMiddleware)

	r.Post("/v1/search", s.Search)
	r.Post("/v1/cluster", s.Cluster)
	r.Get("/v1/process", s.Process)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.runSearch(ctx, &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// Cluster handles POST /v1/cluster.
func (s *Server) Cluster(w http.ResponseWriter, r *http.Request) {
	var req ClusterRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Search == nil && len(req.Results) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "either results or search is required")
		return
	}
	if req.Search != nil && len(req.Results) > 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "results and search are mutually exclusive")
		return
	}
	if err := dc.CheckSize(len(req.Results)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := req.Results
	if req.Search != nil {
		resp, err := s.runSearch(ctx, req.Search)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		results = resp.Results
	}

	clustered, err := s.cluster.Cluster(ctx, results, req.Options.params())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, ClusterResponse{Response: clustered, Results: results})
}

// Process handles GET /v1/process.
func (s *Server) Process(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	var (
		q     string
		qc    dq.Context
		prior []string
	)
	binds := []struct {
		name     string
		required bool
		dest     any
	}{
		{"q", true, &q},
		{"user_id", false, &qc.UserID},
		{"session_id", false, &qc.SessionID},
		{"prior", false, &prior},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, params, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid query parameter: "+err.Error())
			return
		}
	}
	qc.PriorQueries = prior

	processed, err := s.process.Process(r.Context(), q, qc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

// HealthCheck handles GET /health. A degraded service still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) runSearch(ctx context.Context, req *SearchRequest) (*result.Response, error) {
	p, err := req.params()
	if err != nil {
		return nil, err
	}
	return s.search.Search(ctx, req.Query, p)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Calls() > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
		w.Header().Set("X-Embedding-Calls", strconv.Itoa(usage.Calls()))
	}
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

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	for _, s := range []error{domain.ErrNotFound, domain.ErrRateLimited} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// configErrorHandler maps rejected options to 400.
func configErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	if !domain.IsConfigError(err) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
