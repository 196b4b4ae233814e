package query

import (
	"strings"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// expand runs every expansion strategy and prunes the combined list to
// maxExpansionTerms, dropping terms of lower-priority strategies first.
// Terms already in the query and duplicates across strategies are skipped.
func expand(toks dq.Tokens, inferredDomain string, qc dq.Context) dq.Expansions {
	seen := make(map[string]struct{}, len(toks.Normalized))
	for _, t := range toks.Normalized {
		seen[t] = struct{}{}
	}
	keys := lookupKeys(toks)

	raw := map[dq.ExpansionStrategy][]string{
		dq.ExpandSynonym:      fromTable(keys, synonyms),
		dq.ExpandRelated:      fromTable(keys, relatedTerms),
		dq.ExpandDomain:       domainTerms[inferredDomain],
		dq.ExpandHierarchical: fromHierarchy(keys),
		dq.ExpandContextual:   contextualTerms(qc, seen),
	}

	var out dq.Expansions
	total := 0
	for _, s := range dq.ExpansionPriority {
		var terms []string
		for _, t := range raw[s] {
			if total == maxExpansionTerms {
				break
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
			total++
		}
		if len(terms) > 0 {
			out.Groups = append(out.Groups, dq.ExpansionGroup{Strategy: s, Terms: terms})
		}
	}
	return out
}

// lookupKeys returns filtered tokens followed by their stems, deduplicated.
func lookupKeys(toks dq.Tokens) []string {
	seen := make(map[string]struct{}, 2*len(toks.Filtered))
	keys := make([]string, 0, 2*len(toks.Filtered))
	for _, group := range [][]string{toks.Filtered, toks.Stemmed} {
		for _, k := range group {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func fromTable(keys []string, table map[string][]string) []string {
	var out []string
	for _, k := range keys {
		out = append(out, table[k]...)
	}
	return out
}

func fromHierarchy(keys []string) []string {
	var out []string
	for _, k := range keys {
		h, ok := hierarchies[k]
		if !ok {
			continue
		}
		out = append(out, h.broader...)
		out = append(out, h.narrower...)
	}
	return out
}

// contextualTerms draws terms from prior queries (most recent first) and the
// user's declared interests.
func contextualTerms(qc dq.Context, inQuery map[string]struct{}) []string {
	var out []string
	for i := len(qc.PriorQueries) - 1; i >= 0; i-- {
		for _, t := range tokenize(Normalize(qc.PriorQueries[i])).Filtered {
			if _, ok := inQuery[t]; !ok {
				out = append(out, t)
			}
		}
	}
	for _, interest := range qc.Interests {
		if t := strings.ToLower(strings.TrimSpace(interest)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// inferDomain picks the domain from caller hints, then domain entities, then
// the token that most domain keyword sets contain.
func inferDomain(toks dq.Tokens, ents dq.Entities, qc dq.Context) string {
	for _, h := range qc.DomainHints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			if _, ok := domainKeywords[h]; ok {
				return h
			}
		}
	}

	counts := make(map[string]int, len(domainOrder))
	bump := func(word string) {
		for _, d := range domainOrder {
			if _, ok := domainKeywords[d][word]; ok {
				counts[d]++
			}
		}
	}
	for _, e := range ents.OfType(dq.EntityDomain) {
		for _, w := range strings.Fields(e.Normalized) {
			bump(w)
		}
	}
	for _, t := range toks.Filtered {
		bump(t)
	}

	best, bestCount := DefaultDomain, 0
	for _, d := range domainOrder {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
