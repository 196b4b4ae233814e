package query

import (
	"math"
	"time"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

const (
	lexicalWeight   = 0.3
	syntacticWeight = 0.3
	semanticWeight  = 0.4
)

func enrich(toks dq.Tokens, ents dq.Entities, exp dq.Expansions, domain string,
	qc dq.Context, now time.Time,
) dq.Enrichment {
	c := dq.Complexity{
		Lexical:   lexicalComplexity(toks),
		Syntactic: syntacticComplexity(toks),
		Semantic:  semanticComplexity(ents, exp),
	}
	c.Overall = lexicalWeight*c.Lexical + syntacticWeight*c.Syntactic + semanticWeight*c.Semantic

	return dq.Enrichment{
		Complexity:      c,
		Domain:          domain,
		ProcessedAt:     now.UTC(),
		UserID:          qc.UserID,
		SessionID:       qc.SessionID,
		PriorQueryCount: len(qc.PriorQueries),
	}
}

// lexicalComplexity blends vocabulary variety with average word length.
func lexicalComplexity(toks dq.Tokens) float64 {
	if len(toks.Filtered) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(toks.Filtered))
	chars := 0
	for _, t := range toks.Filtered {
		unique[t] = struct{}{}
		chars += len(t)
	}
	variety := float64(len(unique)) / float64(len(toks.Filtered))
	avgLen := float64(chars) / float64(len(toks.Filtered))
	return clamp01(0.5*variety + 0.5*math.Min(avgLen/10, 1))
}

// syntacticComplexity grows with length and function-word density.
func syntacticComplexity(toks dq.Tokens) float64 {
	function := 0
	for _, t := range toks.Tagged {
		switch t.POS {
		case dq.POSDeterminer, dq.POSPreposition, dq.POSWh:
			function++
		}
	}
	return clamp01(0.6*math.Min(float64(len(toks.Tagged))/20, 1) + 0.4*math.Min(float64(function)/5, 1))
}

// semanticComplexity grows with entity count, entity type variety and expansions.
func semanticComplexity(ents dq.Entities, exp dq.Expansions) float64 {
	types := make(map[dq.EntityType]struct{})
	for _, e := range ents.Items {
		types[e.Type] = struct{}{}
	}
	return clamp01(0.5*math.Min(float64(len(ents.Items))/5, 1) +
		0.3*math.Min(float64(len(types))/3, 1) +
		0.2*math.Min(float64(exp.Count())/maxExpansionTerms, 1))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
