package query

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// extractEntities runs every entity rule over the raw query. Offsets are byte
// offsets into raw.
func extractEntities(raw string) dq.Entities {
	var items []dq.Entity
	for _, rule := range entityRules {
		for _, loc := range rule.re.FindAllStringIndex(raw, -1) {
			text := raw[loc[0]:loc[1]]
			items = append(items, dq.Entity{
				Type:       rule.typ,
				Text:       text,
				Normalized: normalizeEntity(rule.typ, text),
				Confidence: rule.confidence,
				Start:      loc[0],
				End:        loc[1],
				Context:    contextWindow(raw, loc[0], loc[1]),
			})
		}
	}
	slices.SortStableFunc(items, func(a, b dq.Entity) int {
		return cmp.Compare(a.Start, b.Start)
	})

	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if spanGap(items[i], items[j]) <= entityRelationWindow {
				items[i].Related = append(items[i].Related, j)
				items[j].Related = append(items[j].Related, i)
			}
		}
	}

	return dq.Entities{Items: items, Coverage: coverage(items, len(raw))}
}

func normalizeEntity(t dq.EntityType, text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case dq.EntityModelName:
		return strings.ToUpper(text)
	case dq.EntityTaskType:
		return slugify(lower)
	case dq.EntityProvider:
		key := strings.NewReplacer(" ", "", "-", "").Replace(lower)
		if c, ok := providerCanonical[key]; ok {
			return c
		}
		return lower
	default:
		return lower
	}
}

func slugify(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), "-")
}

// spanGap is the number of bytes between two spans, negative when they overlap.
func spanGap(a, b dq.Entity) int {
	if a.Start > b.Start {
		a, b = b, a
	}
	return b.Start - a.End
}

func contextWindow(raw string, start, end int) string {
	lo := max(0, start-entityContextWindow)
	hi := min(len(raw), end+entityContextWindow)
	for lo > 0 && !utf8.RuneStart(raw[lo]) {
		lo--
	}
	for hi < len(raw) && !utf8.RuneStart(raw[hi]) {
		hi++
	}
	return raw[lo:hi]
}

// coverage is the share of query bytes inside at least one entity span.
func coverage(items []dq.Entity, n int) float64 {
	if n == 0 || len(items) == 0 {
		return 0
	}
	covered := make([]bool, n)
	for _, e := range items {
		for i := e.Start; i < e.End; i++ {
			covered[i] = true
		}
	}
	count := 0
	for _, c := range covered {
		if c {
			count++
		}
	}
	return float64(count) / float64(n)
}
