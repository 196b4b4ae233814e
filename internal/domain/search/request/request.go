package request

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/mode"
	"github.com/kailas-cloud/modeldex/internal/domain/search/strategy"
)

// Search parameter limits and defaults.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 100
	// MaxWindow caps offset+limit, the deepest page that can be served.
	MaxWindow = 500

	DefaultSimilarityThreshold = 0.3
	DefaultHybridWeight        = 0.3
	DefaultMode                = mode.Semantic
	DefaultStrategy            = strategy.Exact
)

// DefaultCollections are searched when the caller names none.
var DefaultCollections = []string{"model_descriptions", "model_metadata"}

// Params are the caller-facing search options. Zero values select defaults;
// pointer fields distinguish "unset" from an explicit zero or false.
type Params struct {
	Mode                mode.Mode
	Limit               int
	Offset              int
	Filters             filter.Expression
	Collections         []string
	SimilarityThreshold *float64
	VectorStrategy      strategy.Strategy
	Rerank              *bool
	Diversify           *bool
	// HybridWeight is the keyword share w in fusion. Ignored outside hybrid
	// and contextual modes.
	HybridWeight *float64
	Context      query.Context
}

// Request is a validated search query.
type Request struct {
	query        string
	searchMode   mode.Mode
	limit        int
	offset       int
	filters      filter.Expression
	collections  []string
	threshold    float64
	strategy     strategy.Strategy
	rerank       bool
	diversify    bool
	hybridWeight float64
	qctx         query.Context
}

// New validates p and applies defaults. Unknown enum values and out-of-range
// numbers fail with a *domain.ConfigurationError; limit is clamped to MaxLimit.
func New(q string, p Params) (Request, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Request{}, domain.NewConfigError("query", "")
	}
	if len(q) > MaxQueryLength {
		return Request{}, domain.NewConfigError("query", "longer than "+strconv.Itoa(MaxQueryLength)+" chars")
	}

	m := p.Mode
	if m == "" {
		m = DefaultMode
	}
	if !m.IsValid() {
		return Request{}, domain.NewConfigError("mode", string(m))
	}
	s := p.VectorStrategy
	if s == "" {
		s = DefaultStrategy
	}
	if !s.IsValid() {
		return Request{}, domain.NewConfigError("vector_strategy", string(s))
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if p.Offset < 0 {
		return Request{}, domain.NewConfigError("offset", strconv.Itoa(p.Offset))
	}
	if p.Offset+limit > MaxWindow {
		return Request{}, domain.NewConfigError("offset", strconv.Itoa(p.Offset)+" beyond max window")
	}

	threshold := DefaultSimilarityThreshold
	if p.SimilarityThreshold != nil {
		threshold = *p.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return Request{}, domain.NewConfigError("similarity_threshold", formatFloat(threshold))
	}

	w := DefaultHybridWeight
	if p.HybridWeight != nil {
		w = *p.HybridWeight
	}
	if w < 0 || w > 1 {
		return Request{}, domain.NewConfigError("hybrid_weight", formatFloat(w))
	}
	switch m {
	case mode.Semantic:
		w = 0
	case mode.Keyword:
		w = 1
	}

	collections := normalizeCollections(p.Collections)
	if len(collections) == 0 {
		collections = slices.Clone(DefaultCollections)
	}

	rerank := p.Rerank == nil || *p.Rerank
	if m == mode.Contextual {
		rerank = true
	}

	return Request{
		query:        q,
		searchMode:   m,
		limit:        limit,
		offset:       p.Offset,
		filters:      p.Filters,
		collections:  collections,
		threshold:    threshold,
		strategy:     s,
		rerank:       rerank,
		diversify:    p.Diversify == nil || *p.Diversify,
		hybridWeight: w,
		qctx:         p.Context,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the retrieval mode.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Offset returns the number of ranked results to skip.
func (r *Request) Offset() int { return r.offset }

// Window returns offset+limit, the ranked depth needed to serve the page.
func (r *Request) Window() int { return r.offset + r.limit }

// Filters returns the structured filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// Collections returns the sorted, deduplicated collection list.
func (r *Request) Collections() []string { return r.collections }

// SimilarityThreshold returns the minimum semantic score.
func (r *Request) SimilarityThreshold() float64 { return r.threshold }

// Strategy returns the vector strategy.
func (r *Request) Strategy() strategy.Strategy { return r.strategy }

// Rerank reports whether the context reranker runs.
func (r *Request) Rerank() bool { return r.rerank }

// Diversify reports whether near-duplicates are thinned out.
func (r *Request) Diversify() bool { return r.diversify }

// HybridWeight returns the effective keyword weight w in [0,1].
func (r *Request) HybridWeight() float64 { return r.hybridWeight }

// Context returns the caller context.
func (r *Request) Context() query.Context { return r.qctx }

// WithMode returns a copy switched to m with the matching fusion weight.
// Used for the keyword fallback when embeddings are unavailable.
func (r *Request) WithMode(m mode.Mode) Request {
	c := *r
	c.searchMode = m
	switch m {
	case mode.Semantic:
		c.hybridWeight = 0
	case mode.Keyword:
		c.hybridWeight = 1
	}
	return c
}

// CacheKey returns a deterministic key for the response of r given the
// normalized query text.
func (r *Request) CacheKey(normalized string) string {
	parts := []string{
		normalized,
		string(r.searchMode),
		strconv.Itoa(r.limit),
		strconv.Itoa(r.offset),
		r.filters.String(),
		strings.Join(r.collections, ","),
		string(r.strategy),
		formatFloat(r.threshold),
		strconv.FormatBool(r.rerank),
		strconv.FormatBool(r.diversify),
		formatFloat(r.hybridWeight),
		r.qctx.UserID,
		strings.Join(r.qctx.PriorQueries, "\x1f"),
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1e")))
	return "search:" + hex.EncodeToString(h[:])
}

func normalizeCollections(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
