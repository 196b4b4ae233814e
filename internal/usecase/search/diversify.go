package search

import (
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

const (
	// diversifyMinResults is the list size below which diversification is skipped.
	diversifyMinResults = 5
	// diversifyKeep is the number of results accepted regardless of similarity.
	diversifyKeep = 3
	// diversifySimilarity is the Jaccard similarity that marks a near duplicate.
	diversifySimilarity = 0.7
)

// diversify drops results too similar to an already accepted one, walking
// in rank order. The first diversifyKeep results are always accepted.
func diversify(ranked []result.Result) []result.Result {
	if len(ranked) <= diversifyMinResults {
		return ranked
	}
	out := make([]result.Result, 0, len(ranked))
	features := make([]map[string]struct{}, 0, len(ranked))
	for i := range ranked {
		f := featureSet(&ranked[i])
		if len(out) >= diversifyKeep && tooSimilar(f, features) {
			continue
		}
		out = append(out, ranked[i])
		features = append(features, f)
	}
	return out
}

func tooSimilar(f map[string]struct{}, accepted []map[string]struct{}) bool {
	for _, a := range accepted {
		if jaccard(f, a) >= diversifySimilarity {
			return true
		}
	}
	return false
}

// featureSet is the descriptive token set of a result used for similarity.
func featureSet(r *result.Result) map[string]struct{} {
	rec := r.Record()
	set := make(map[string]struct{})
	add := func(prefix, v string) {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[prefix+v] = struct{}{}
		}
	}
	for _, w := range strings.Fields(rec.Name) {
		add("n:", w)
	}
	add("p:", rec.Provider)
	add("t:", rec.ModelType)
	for _, c := range rec.Capabilities {
		add("c:", c)
	}
	for _, t := range rec.Tags {
		add("g:", t)
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
