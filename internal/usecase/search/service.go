// Package search implements the hybrid search executor: vector strategies
// over several collections, keyword scoring, rank fusion, reranking,
// diversification and pagination.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/mode"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/domain/search/strategy"
	"github.com/kailas-cloud/modeldex/internal/metrics"
	"github.com/kailas-cloud/modeldex/internal/usecase/query"
)

// Degraded source names reported in response metadata.
const (
	SourceEmbedder = "embedder"
	SourceKeyword  = "keyword"
	SourceReranker = "reranker"
)

// Store sources counted in modeldex_search_source_errors_total. Failing
// collections are reported by name in metadata and logs only.
const (
	SourceVectorStore = "vector_store"
	SourceTextStore   = "text_store"
)

// Config tunes fan-out and per-call timeouts.
type Config struct {
	// MaxFanout bounds concurrent collaborator calls per request.
	MaxFanout        int
	EmbeddingTimeout time.Duration
	StoreTimeout     time.Duration
	RerankerTimeout  time.Duration
	// ApproximateEF is the HNSW query-time candidate list size of the
	// approximate strategy.
	ApproximateEF int
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		MaxFanout:        8,
		EmbeddingTimeout: 5 * time.Second,
		StoreTimeout:     3 * time.Second,
		RerankerTimeout:  3 * time.Second,
		ApproximateEF:    32,
	}
}

// Service runs hybrid searches.
type Service struct {
	repo       Repository
	processor  QueryProcessor
	embed      Embedder
	reranker   Reranker
	cache      ResponseCache
	logger     *zap.Logger
	cfg        Config
	tracer     trace.Tracer
	newID      func() string
	strategies map[strategy.Strategy]vectorStrategy
}

// Option configures a Service.
type Option func(*Service)

// WithReranker enables context reranking.
func WithReranker(r Reranker) Option {
	return func(s *Service) { s.reranker = r }
}

// WithCache enables the response cache.
func WithCache(c ResponseCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithConfig overrides the default tuning. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		d := DefaultConfig()
		if cfg.MaxFanout <= 0 {
			cfg.MaxFanout = d.MaxFanout
		}
		if cfg.EmbeddingTimeout <= 0 {
			cfg.EmbeddingTimeout = d.EmbeddingTimeout
		}
		if cfg.StoreTimeout <= 0 {
			cfg.StoreTimeout = d.StoreTimeout
		}
		if cfg.RerankerTimeout <= 0 {
			cfg.RerankerTimeout = d.RerankerTimeout
		}
		if cfg.ApproximateEF <= 0 {
			cfg.ApproximateEF = d.ApproximateEF
		}
		s.cfg = cfg
	}
}

// WithIDGenerator replaces the request id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a search service.
func New(repo Repository, processor QueryProcessor, embed Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		processor: processor,
		embed:     embed,
		logger:    logger,
		cfg:       DefaultConfig(),
		tracer:    otel.Tracer("github.com/kailas-cloud/modeldex/internal/usecase/search"),
		newID:     uuid.NewString,
		strategies: map[strategy.Strategy]vectorStrategy{
			strategy.Exact:        exactStrategy{},
			strategy.Approximate:  approximateStrategy{},
			strategy.MultiVector:  multiVectorStrategy{},
			strategy.Hierarchical: hierarchicalStrategy{},
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search validates p, runs the pipeline and returns one page of results.
// Only configuration errors are returned; collaborator failures degrade
// the response and are listed in its metadata.
func (s *Service) Search(ctx context.Context, q string, p request.Params) (*result.Response, error) {
	req, err := request.New(q, p)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(p.Mode), "invalid").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.mode", string(req.Mode())),
		attribute.String("search.strategy", string(req.Strategy())),
	))
	defer span.End()

	start := time.Now()
	compute := func(ctx context.Context) (*result.Response, error) {
		return s.execute(ctx, &req)
	}

	var resp *result.Response
	if s.cache != nil {
		var hit bool
		resp, hit, err = s.cache.GetOrCompute(ctx, req.CacheKey(query.Normalize(req.Query())), compute)
		span.SetAttributes(attribute.Bool("search.cache_hit", hit))
	} else {
		resp, err = compute(ctx)
	}
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode()), "invalid").Inc()
		return nil, err
	}

	status := "ok"
	if len(resp.Metadata.Degraded) > 0 || resp.Metadata.FallbackMode != "" {
		status = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode()), status).Inc()
	metrics.SearchDuration.WithLabelValues(string(req.Mode())).Observe(time.Since(start).Seconds())
	return resp, nil
}

// run is the mutable state of one pipeline execution.
type run struct {
	req      request.Request
	pq       *dq.Processed
	mu       sync.Mutex
	degraded []string
	timings  map[string]float64
}

func (r *run) degrade(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.degraded, source) {
		r.degraded = append(r.degraded, source)
	}
}

func (r *run) track(stage string, start time.Time) {
	r.mu.Lock()
	r.timings[stage] = float64(time.Since(start).Microseconds()) / 1000
	r.mu.Unlock()
}

func (s *Service) execute(ctx context.Context, req *request.Request) (*result.Response, error) {
	log := s.logger.With(zap.String("query", req.Query()))

	started := time.Now()
	pq, err := s.processor.Process(ctx, req.Query(), req.Context())
	if err != nil {
		return nil, fmt.Errorf("process query: %w", err)
	}
	r := &run{req: *req, pq: pq, timings: map[string]float64{}}
	r.track("process", started)

	var fallback mode.Mode
	var semantic []result.Result
	if r.req.Mode().NeedsVectors() {
		vec, err := s.embedQuery(ctx, embeddingText(r))
		if err != nil {
			log.Warn("Query embedding failed, falling back to keyword search", zap.Error(err))
			metrics.SearchSourceErrorsTotal.WithLabelValues(SourceEmbedder).Inc()
			r.degrade(SourceEmbedder)
			fallback = mode.Keyword
			r.req = r.req.WithMode(mode.Keyword)
		} else {
			started = time.Now()
			semantic = s.vectorSearch(ctx, r, vec)
			r.track("vector", started)
		}
	}

	var keyword []result.Result
	if r.req.Mode().NeedsKeywords() {
		started = time.Now()
		keyword = s.keywordSearch(ctx, r, semantic)
		r.track("keyword", started)
	}

	ranked := fuse(semantic, keyword, r.req.HybridWeight(), r.req.Window())
	semRanks, kwRanks := rankIndex(semantic), rankIndex(keyword)

	reranked := false
	var rerankPos map[string]int
	if r.req.Rerank() && s.reranker != nil && len(ranked) > 1 {
		started = time.Now()
		ranked, rerankPos, reranked = s.rerankOrKeep(ctx, r, ranked)
		r.track("rerank", started)
	}

	diversified := false
	if r.req.Diversify() {
		before := len(ranked)
		ranked = diversify(ranked)
		diversified = len(ranked) != before
	}

	total := len(ranked)
	page := paginate(ranked, r.req.Offset(), r.req.Limit())
	terms := keywordTerms(pq)
	for i := range page {
		page[i] = explain(page[i], terms, semRanks, kwRanks, rerankPos)
	}

	return &result.Response{
		Results: page,
		Total:   total,
		Offset:  r.req.Offset(),
		Limit:   r.req.Limit(),
		Intent:  pq.Intent.Primary,
		Metadata: result.Metadata{
			RequestID:    s.newID(),
			Mode:         req.Mode(),
			Strategy:     req.Strategy(),
			HybridWeight: r.req.HybridWeight(),
			Filters:      req.Filters().String(),
			Collections:  req.Collections(),
			FallbackMode: fallback,
			Degraded:     r.degraded,
			Reranked:     reranked,
			Diversified:  diversified,
			TimingsMS:    r.timings,
		},
		Facets:      result.BuildFacets(ranked),
		Suggestions: pq.Suggestions,
	}, nil
}

// embeddingText is the normalized query, extended in contextual mode with
// the terms drawn from the caller's prior queries.
func embeddingText(r *run) string {
	text := r.pq.SearchText()
	if r.req.Mode() != mode.Contextual {
		return text
	}
	if extra := r.pq.Expansions.For(dq.ExpandContextual); len(extra) > 0 {
		text += " " + strings.Join(extra, " ")
	}
	return text
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, &domain.CollaboratorError{Source: SourceEmbedder, Err: err}
	}
	if len(res.Embedding) == 0 {
		return nil, &domain.CollaboratorError{Source: SourceEmbedder, Err: errors.New("empty embedding")}
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embedding, nil
}

// paginate returns a copy of rs[offset:offset+limit], empty past the end.
func paginate(rs []result.Result, offset, limit int) []result.Result {
	if offset >= len(rs) {
		return []result.Result{}
	}
	end := min(offset+limit, len(rs))
	return slices.Clone(rs[offset:end])
}

// rankIndex maps result ids to their 1-based rank.
func rankIndex(rs []result.Result) map[string]int {
	idx := make(map[string]int, len(rs))
	for i := range rs {
		if _, ok := idx[rs[i].ID()]; !ok {
			idx[rs[i].ID()] = i + 1
		}
	}
	return idx
}
