// Package query implements query understanding: a fixed sequence of
// fault-tolerant stages turning free text into a ProcessedQuery.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/metrics"
)

// Stage names, in execution order.
const (
	StageTokenize  = "tokenize"
	StageNormalize = "normalize"
	StageIntent    = "intent"
	StageEntities  = "entities"
	StageExpand    = "expand"
	StageEnrich    = "enrich"
	StageSemantic  = "semantic"

	stageCount = 7
)

// Pipeline runs query understanding. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	logger   *zap.Logger
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time

	// fault, when set, is consulted before every stage. Tests use it to
	// simulate stage failures.
	fault func(stage string) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables the processed-query cache.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for enrichment timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a query understanding pipeline.
func New(logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{logger: logger, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process builds the ProcessedQuery for q. The only error is a configuration
// error for an empty query; failing stages degrade to neutral output.
func (p *Pipeline) Process(ctx context.Context, q string, qc dq.Context) (*dq.Processed, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewConfigError("query", "")
	}

	key := cacheKey(q, qc)
	if cached := p.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	out := &dq.Processed{Query: q, Context: qc}
	completed := 0
	run := func(stage string, fn func() error) {
		if err := p.runStage(stage, fn); err != nil {
			p.logger.Warn("Query stage failed, using neutral output",
				zap.String("stage", stage), zap.Error(err))
			metrics.QueryStageErrorsTotal.WithLabelValues(stage).Inc()
			out.Failures = append(out.Failures, dq.StageFailure{Stage: stage, Error: err.Error()})
			return
		}
		completed++
	}

	run(StageTokenize, func() error {
		out.Tokens = tokenize(q)
		return nil
	})
	run(StageNormalize, func() error {
		out.Normalized = Normalize(q)
		return nil
	})
	out.Intent = defaultIntent()
	run(StageIntent, func() error {
		out.Intent = detectIntent(out.SearchText(), out.Tokens.Filtered, qc.PriorQueries)
		return nil
	})
	run(StageEntities, func() error {
		out.Entities = extractEntities(q)
		return nil
	})
	out.Enrichment.Domain = DefaultDomain
	run(StageExpand, func() error {
		out.Expansions = expand(out.Tokens, inferDomain(out.Tokens, out.Entities, qc), qc)
		return nil
	})
	run(StageEnrich, func() error {
		out.Enrichment = enrich(out.Tokens, out.Entities, out.Expansions,
			inferDomain(out.Tokens, out.Entities, qc), qc, p.now())
		return nil
	})
	run(StageSemantic, func() error {
		out.Semantics = parseSemantics(q, out.Tokens, out.Entities)
		return nil
	})

	out.Confidence = (out.Intent.Primary.Confidence +
		out.Entities.MeanConfidence() +
		float64(completed)/stageCount) / 3
	out.Suggestions = suggest(out)

	p.store(ctx, key, out)
	return out, nil
}

// runStage calls fn, converting a panic into an error.
func (p *Pipeline) runStage(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if p.fault != nil {
		if ferr := p.fault(stage); ferr != nil {
			return &domain.StageError{Stage: stage, Err: ferr}
		}
	}
	if err := fn(); err != nil {
		return &domain.StageError{Stage: stage, Err: err}
	}
	return nil
}

func suggest(pq *dq.Processed) []string {
	var out []string
	if len(pq.Entities.Items) == 0 {
		out = append(out, `Try naming a specific model, provider or task, for example "code generation"`)
	}
	if len(pq.Tokens.Filtered) < 2 {
		out = append(out, "Try being more specific")
	}
	if pq.Intent.Primary.Intent == dq.IntentComparison {
		named := len(pq.Entities.OfType(dq.EntityModelName)) + len(pq.Entities.OfType(dq.EntityProvider))
		if named < 2 {
			out = append(out, "Name at least two models or providers to compare")
		}
	}
	if terms := pq.Expansions.Terms(); len(terms) > 0 {
		out = append(out, "Related terms: "+strings.Join(terms[:min(3, len(terms))], ", "))
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func cacheKey(q string, qc dq.Context) string {
	ctxJSON, _ := json.Marshal(qc)
	h := sha256.New()
	h.Write([]byte(q))
	h.Write([]byte{0})
	h.Write(ctxJSON)
	return "query:" + hex.EncodeToString(h.Sum(nil))
}

func (p *Pipeline) lookup(ctx context.Context, key string) *dq.Processed {
	if p.cache == nil {
		return nil
	}
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var pq dq.Processed
	if err := json.Unmarshal(data, &pq); err != nil {
		p.logger.Warn("Processed query cache entry unreadable", zap.Error(err))
		return nil
	}
	return &pq
}

func (p *Pipeline) store(ctx context.Context, key string, pq *dq.Processed) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(pq)
	if err != nil {
		return
	}
	if err := p.cache.SetWithTTL(ctx, key, data, p.cacheTTL); err != nil {
		p.logger.Warn("Processed query cache write failed", zap.Error(err))
	}
}
