package search

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/metrics"
)

// Strategy tuning.
const (
	// candidateFactor leaves room for reranking and diversification.
	candidateFactor       = 2
	approximateThreshold  = 0.9
	maxExpansionVectors   = 3
	expandedScoreDiscount = 0.8
	maxConcepts           = 3
)

// knnCall is one nearest-neighbor query issued against every collection.
type knnCall struct {
	vector    []float32
	filters   filter.Expression
	k         int
	ef        int
	st        result.SearchType
	threshold float64
	// scale discounts the similarity of secondary vectors.
	scale   float64
	term    string
	concept string
}

// vectorStrategy plans the KNN calls of the semantic channel.
type vectorStrategy interface {
	plan(ctx context.Context, s *Service, r *run, vec []float32) []knnCall
}

type exactStrategy struct{}

func (exactStrategy) plan(_ context.Context, _ *Service, r *run, vec []float32) []knnCall {
	return []knnCall{primaryCall(r, vec)}
}

func primaryCall(r *run, vec []float32) knnCall {
	return knnCall{
		vector:    vec,
		filters:   r.req.Filters(),
		k:         r.req.Window() * candidateFactor,
		st:        result.TypeSemantic,
		threshold: r.req.SimilarityThreshold(),
		scale:     1,
	}
}

type approximateStrategy struct{}

func (approximateStrategy) plan(_ context.Context, s *Service, r *run, vec []float32) []knnCall {
	c := primaryCall(r, vec)
	c.ef = s.cfg.ApproximateEF
	c.threshold *= approximateThreshold
	c.st = result.TypeSemanticApproximate
	return []knnCall{c}
}

type multiVectorStrategy struct{}

// plan embeds up to three expansion terms concurrently. A term whose
// embedding fails is skipped.
func (multiVectorStrategy) plan(ctx context.Context, s *Service, r *run, vec []float32) []knnCall {
	calls := []knnCall{primaryCall(r, vec)}

	terms := r.pq.Expansions.Terms()
	if len(terms) > maxExpansionVectors {
		terms = terms[:maxExpansionVectors]
	}
	vectors := make([][]float32, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxFanout)
	for i, term := range terms {
		g.Go(func() error {
			v, err := s.embedQuery(gctx, term)
			if err != nil {
				s.logger.Warn("Expansion term embedding failed", zap.String("term", term), zap.Error(err))
				metrics.SearchSourceErrorsTotal.WithLabelValues(SourceEmbedder).Inc()
				return nil
			}
			vectors[i] = v
			return nil
		})
	}
	_ = g.Wait()

	for i, v := range vectors {
		if v == nil {
			continue
		}
		calls = append(calls, knnCall{
			vector:    v,
			filters:   r.req.Filters(),
			k:         r.req.Window(),
			st:        result.TypeSemanticExpanded,
			threshold: r.req.SimilarityThreshold(),
			scale:     expandedScoreDiscount,
			term:      terms[i],
		})
	}
	return calls
}

type hierarchicalStrategy struct{}

// plan scopes one search per resolved concept, splitting the candidate
// budget by concept relevance. With no concept it behaves as exact.
func (hierarchicalStrategy) plan(_ context.Context, s *Service, r *run, vec []float32) []knnCall {
	concepts := resolveConcepts(r.pq)
	if len(concepts) == 0 {
		return []knnCall{primaryCall(r, vec)}
	}

	budget := r.req.Window() * candidateFactor
	var total float64
	for _, c := range concepts {
		total += c.relevance
	}

	calls := make([]knnCall, 0, len(concepts))
	for _, c := range concepts {
		cond, err := filter.NewAnyOf(c.field, c.values)
		if err != nil {
			s.logger.Warn("Skip concept scope", zap.String("concept", c.name), zap.Error(err))
			continue
		}
		k := max(1, int(math.Round(float64(budget)*c.relevance/total)))
		calls = append(calls, knnCall{
			vector:    vec,
			filters:   r.req.Filters().WithMust(cond),
			k:         k,
			st:        result.TypeSemanticHierarchical,
			threshold: r.req.SimilarityThreshold(),
			scale:     1,
			concept:   c.name,
		})
	}
	if len(calls) == 0 {
		return []knnCall{primaryCall(r, vec)}
	}
	return calls
}

// vectorSearch runs the planned calls against every collection
// concurrently. A failed call degrades its collection and contributes
// nothing. The merged list is deduplicated and sorted by score, then id.
func (s *Service) vectorSearch(ctx context.Context, r *run, vec []float32) []result.Result {
	ctx, span := s.tracer.Start(ctx, "search.vector")
	defer span.End()

	strat := s.strategies[r.req.Strategy()]
	calls := strat.plan(ctx, s, r, vec)
	collections := r.req.Collections()

	slots := make([][]result.Result, len(calls)*len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxFanout)
	for ci, call := range calls {
		for cj, coll := range collections {
			slot := ci*len(collections) + cj
			g.Go(func() error {
				slots[slot] = s.knn(gctx, r, coll, call)
				return nil
			})
		}
	}
	_ = g.Wait()

	var merged []result.Result
	for _, rs := range slots {
		merged = append(merged, rs...)
	}
	merged = result.Dedupe(merged)
	sortByScore(merged)
	return merged
}

func (s *Service) knn(ctx context.Context, r *run, coll string, c knnCall) []result.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	hits, err := s.repo.SearchKNN(ctx, coll, c.vector, c.filters, c.k, c.ef, true, c.st)
	if err != nil {
		s.logger.Warn("Collection search failed",
			zap.String("collection", coll),
			zap.String("search_type", string(c.st)),
			zap.Error(err),
		)
		metrics.SearchSourceErrorsTotal.WithLabelValues(SourceVectorStore).Inc()
		r.degrade(coll)
		return nil
	}

	out := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		score := h.Score() * c.scale
		if score < c.threshold {
			continue
		}
		h = h.WithScore(score)
		if c.term != "" || c.concept != "" {
			h = h.WithProvenance(c.term, c.concept)
		}
		out = append(out, h)
	}
	return out
}

func sortByScore(rs []result.Result) {
	slices.SortStableFunc(rs, func(a, b result.Result) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
}
