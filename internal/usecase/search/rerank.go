package search

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/rerank"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/metrics"
)

// rerankOrKeep asks the reranker to reorder ranked. Results it does not
// mention keep their relative order after the ones it does; ids it
// invents are ignored. On failure the fused order is returned unchanged
// and the reranker is reported as degraded.
func (s *Service) rerankOrKeep(
	ctx context.Context, r *run, ranked []result.Result,
) ([]result.Result, map[string]int, bool) {
	ctx, span := s.tracer.Start(ctx, "search.rerank", trace.WithAttributes(
		attribute.Int("rerank.candidates", len(ranked)),
	))
	defer span.End()

	candidates := make([]rerank.Candidate, len(ranked))
	for i := range ranked {
		rec := ranked[i].Record()
		candidates[i] = rerank.Candidate{
			ID:          ranked[i].ID(),
			Name:        rec.Name,
			Description: rec.Description,
			Tags:        rec.Tags,
			Score:       ranked[i].Score(),
		}
	}
	rc := rerank.Context{
		UserID:   r.req.Context().UserID,
		Domain:   r.pq.Enrichment.Domain,
		TaskType: r.pq.TaskType(),
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.RerankerTimeout)
	defer cancel()
	order, err := s.reranker.Rank(cctx, r.pq.SearchText(), candidates, rc)
	if err != nil {
		err = &domain.CollaboratorError{Source: SourceReranker, Err: err}
		span.RecordError(err)
		s.logger.Warn("Rerank failed, keeping fused order", zap.Error(err))
		metrics.SearchSourceErrorsTotal.WithLabelValues(SourceReranker).Inc()
		r.degrade(SourceReranker)
		return ranked, nil, false
	}

	byID := make(map[string]int, len(ranked))
	for i := range ranked {
		byID[ranked[i].ID()] = i
	}
	used := make([]bool, len(ranked))
	out := make([]result.Result, 0, len(ranked))
	pos := make(map[string]int, len(ranked))
	for _, o := range order {
		i, ok := byID[o.ID]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		pos[o.ID] = len(out) + 1
		out = append(out, ranked[i])
	}
	for i := range ranked {
		if !used[i] {
			out = append(out, ranked[i])
		}
	}
	return out, pos, true
}
