package search

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/metrics"
)

// Keyword scoring weights.
const (
	coverageWeight  = 0.6
	precisionWeight = 0.4
	// keywordCandidateFactor over-fetches text candidates before rescoring.
	keywordCandidateFactor = 3
)

// keywordTerms is the query set: the normalized phrase, the filtered
// tokens and the expansion terms, lower-cased and deduplicated in that order.
func keywordTerms(pq *dq.Processed) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	add(pq.SearchText())
	for _, t := range pq.Tokens.Filtered {
		add(t)
	}
	for _, t := range pq.Expansions.Terms() {
		add(t)
	}
	return out
}

// storeTerms are the single words sent to the store's OR text search.
func storeTerms(pq *dq.Processed) []string {
	terms := keywordTerms(pq)
	if len(terms) > 0 && strings.Contains(terms[0], " ") {
		terms = terms[1:]
	}
	return terms
}

// matchText is a record's searchable text prepared for term matching.
type matchText struct {
	raw string
	// words is the space-padded word sequence for exact word matching.
	words string
}

func newMatchText(text string) matchText {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.' && r != '+'
	})
	return matchText{raw: lower, words: " " + strings.Join(fields, " ") + " "}
}

func (m matchText) contains(term string) bool { return strings.Contains(m.raw, term) }

func (m matchText) hasWord(term string) bool { return strings.Contains(m.words, " "+term+" ") }

// keywordScore is 0.6*coverage + 0.4*precision: coverage is the share of
// terms found anywhere in the text, precision the share found as whole words.
func keywordScore(terms []string, text matchText) float64 {
	if len(terms) == 0 {
		return 0
	}
	var covered, exact int
	for _, t := range terms {
		if text.contains(t) {
			covered++
			if text.hasWord(t) {
				exact++
			}
		}
	}
	n := float64(len(terms))
	return coverageWeight*float64(covered)/n + precisionWeight*float64(exact)/n
}

// matchedTerms lists the terms found in the record's text.
func matchedTerms(terms []string, rec *result.Result) []string {
	rc := rec.Record()
	text := newMatchText(rc.SearchText())
	var out []string
	for _, t := range terms {
		if text.contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// keywordSearch gathers text candidates from the store, or rescoring the
// semantic pool when the store has no text search, and ranks them by
// keywordScore.
func (s *Service) keywordSearch(ctx context.Context, r *run, pool []result.Result) []result.Result {
	ctx, span := s.tracer.Start(ctx, "search.keyword")
	defer span.End()

	terms := keywordTerms(r.pq)
	var candidates []result.Result
	supported := s.repo.SupportsTextSearch(ctx)
	if supported {
		var unsupported bool
		candidates, unsupported = s.textCandidates(ctx, r)
		supported = !unsupported || len(candidates) > 0
	}
	if !supported {
		if len(pool) == 0 {
			s.logger.Warn("Keyword search unavailable on this backend", zap.Error(domain.ErrKeywordSearchNotSupported))
			r.degrade(SourceKeyword)
			return nil
		}
		candidates = pool
	}

	scored := make([]result.Result, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		rec := c.Record()
		score := keywordScore(terms, newMatchText(rec.SearchText()))
		if score <= 0 {
			continue
		}
		scored = append(scored, result.New(c.ID(), score, rec, c.Collection(), result.TypeKeyword, c.Vector()))
	}
	scored = result.Dedupe(scored)
	sortByScore(scored)
	if w := r.req.Window(); len(scored) > w {
		scored = scored[:w]
	}
	return scored
}

// textCandidates runs the OR text search on every collection. unsupported
// reports that the store rejected text search at call time.
func (s *Service) textCandidates(ctx context.Context, r *run) (candidates []result.Result, unsupported bool) {
	collections := r.req.Collections()
	terms := storeTerms(r.pq)
	if len(terms) == 0 {
		return nil, false
	}
	k := r.req.Window() * keywordCandidateFactor

	slots := make([][]result.Result, len(collections))
	flags := make([]bool, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxFanout)
	for i, coll := range collections {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.cfg.StoreTimeout)
			defer cancel()
			hits, err := s.repo.SearchText(cctx, coll, terms, r.req.Filters(), k)
			switch {
			case errors.Is(err, domain.ErrKeywordSearchNotSupported):
				flags[i] = true
			case err != nil:
				s.logger.Warn("Collection text search failed", zap.String("collection", coll), zap.Error(err))
				metrics.SearchSourceErrorsTotal.WithLabelValues(SourceTextStore).Inc()
				r.degrade(coll)
			default:
				slots[i] = hits
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range slots {
		candidates = append(candidates, slots[i]...)
		unsupported = unsupported || flags[i]
	}
	return candidates, unsupported
}
