package cluster

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	"github.com/kailas-cloud/modeldex/internal/usecase/query"
)

const (
	minTopicDF      = 2
	minTopicTermLen = 3
	minTopics       = 2
	maxTopics       = 5
)

type topicModel struct{}

// partition picks the most widespread terms as topics and assigns every
// result to the topic term it mentions most. Results that mention none go
// to the trailing bucket.
func (topicModel) partition(in *input, o dc.Options, _ int) partition {
	n := in.n()
	docs := make([]map[string]int, n)
	df := make(map[string]int)
	for i, text := range in.f.texts {
		docs[i] = termCounts(text)
		for t := range docs[i] {
			df[t]++
		}
	}

	var candidates []string
	for t, c := range df {
		if c >= minTopicDF {
			candidates = append(candidates, t)
		}
	}
	slices.SortFunc(candidates, func(a, b string) int {
		return cmp.Or(cmp.Compare(df[b], df[a]), strings.Compare(a, b))
	})
	want := o.K
	if want == 0 {
		want = min(max(n/3, minTopics), maxTopics)
	}
	topics := candidates[:min(want, len(candidates))]

	assign := make([]int, n)
	for i, counts := range docs {
		assign[i] = -1
		best := 0
		for t, term := range topics {
			if c := counts[term]; c > best {
				assign[i], best = t, c
			}
		}
	}

	var out partition
	for t, term := range topics {
		members := membersOf(assign, t)
		if len(members) == 0 {
			continue
		}
		out.groups = append(out.groups, members)
		out.terms = append(out.terms, []string{term})
	}
	out.noise = membersOf(assign, -1)
	return out
}

// termCounts counts the content words of text: longer than two characters
// and not stop words.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range words(text) {
		if len(w) < minTopicTermLen || query.IsStopWord(w) {
			continue
		}
		counts[w]++
	}
	return counts
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
