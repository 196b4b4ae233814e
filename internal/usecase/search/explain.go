package search

import (
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// explain attaches why a result was returned: which channels produced it,
// the query terms found in its text and its rank in each stage.
func explain(
	r result.Result, terms []string, semRanks, kwRanks, rerankPos map[string]int,
) result.Result {
	var sources []result.SearchType
	seen := make(map[result.SearchType]struct{})
	for _, p := range r.Provenance() {
		if _, ok := seen[p.Type]; ok {
			continue
		}
		seen[p.Type] = struct{}{}
		sources = append(sources, p.Type)
	}
	return r.WithExplanation(result.Explanation{
		Sources:        sources,
		MatchedTerms:   matchedTerms(terms, &r),
		SemanticRank:   semRanks[r.ID()],
		KeywordRank:    kwRanks[r.ID()],
		RerankPosition: rerankPos[r.ID()],
	})
}
