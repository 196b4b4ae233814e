package query

import (
	"cmp"
	"math"
	"slices"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

const (
	intentKeywordWeight = 0.7
	intentMinScore      = 0.3
	intentDefaultScore  = 0.5
	intentContextBoost  = 0.1
	maxAlternateIntents = 2
)

// defaultIntent is the neutral intent output.
func defaultIntent() dq.Intent {
	return dq.Intent{Primary: dq.IntentScore{Intent: dq.IntentSearch, Confidence: intentDefaultScore}}
}

// detectIntent scores every class against the normalized text and filtered
// tokens. When a prior query scores the same primary class, the primary
// confidence is boosted.
func detectIntent(normalized string, filtered []string, prior []string) dq.Intent {
	scores := scoreIntents(normalized, filtered)
	if len(scores) == 0 {
		return defaultIntent()
	}

	out := dq.Intent{Primary: scores[0]}
	if len(scores) > 1 {
		out.Alternates = scores[1:min(len(scores), 1+maxAlternateIntents)]
	}

	if n := len(prior); n > 0 {
		last := Normalize(prior[n-1])
		for _, s := range scoreIntents(last, tokenize(last).Filtered) {
			if s.Intent == out.Primary.Intent {
				out.Primary.Confidence = math.Min(1, out.Primary.Confidence+intentContextBoost)
				break
			}
		}
	}
	return out
}

// scoreIntents returns qualifying classes sorted by descending score.
func scoreIntents(normalized string, filtered []string) []dq.IntentScore {
	var out []dq.IntentScore
	for _, class := range intentClasses {
		var best float64
		for _, p := range class.patterns {
			if p.confidence > best && p.re.MatchString(normalized) {
				best = p.confidence
			}
		}
		if len(filtered) > 0 {
			hits := 0
			for _, tok := range filtered {
				if _, ok := class.keywords[tok]; ok {
					hits++
				}
			}
			best = math.Max(best, float64(hits)/float64(len(filtered))*intentKeywordWeight)
		}
		if best > intentMinScore {
			out = append(out, dq.IntentScore{Intent: class.intent, Confidence: best})
		}
	}
	slices.SortStableFunc(out, func(a, b dq.IntentScore) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}
