package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// concept is a coarse region of the catalog the hierarchical strategy can
// scope a search to.
type concept struct {
	name     string
	field    string
	values   []string
	keywords []string
}

// conceptTaxonomy is ordered; the order breaks relevance ties.
var conceptTaxonomy = []concept{
	{"code", catalog.FieldDomain, []string{"code", "programming", "software"},
		[]string{"code", "coding", "programming", "developer", "software", "debugging", "completion"}},
	{"language", catalog.FieldDomain, []string{"general", "language", "nlp", "chat"},
		[]string{"chat", "text", "language", "llm", "conversation", "assistant", "writing", "summarization", "translation"}},
	{"vision", catalog.FieldDomain, []string{"vision", "image", "multimodal"},
		[]string{"image", "images", "vision", "visual", "photo", "picture", "diffusion", "ocr", "video"}},
	{"audio", catalog.FieldDomain, []string{"audio", "speech"},
		[]string{"audio", "speech", "voice", "transcription", "music", "tts"}},
	{"embedding", catalog.FieldModelType, []string{"embedding", "embeddings"},
		[]string{"embedding", "embeddings", "retrieval", "similarity", "vector", "semantic"}},
	{"healthcare", catalog.FieldDomain, []string{"healthcare", "medical", "biomedical"},
		[]string{"medical", "healthcare", "clinical", "medicine", "biomedical", "health"}},
	{"legal", catalog.FieldDomain, []string{"legal", "law"},
		[]string{"legal", "law", "contract", "contracts", "compliance"}},
	{"finance", catalog.FieldDomain, []string{"finance", "financial"},
		[]string{"finance", "financial", "trading", "banking", "stock"}},
	{"science", catalog.FieldDomain, []string{"science", "research"},
		[]string{"science", "scientific", "research", "chemistry", "biology", "physics"}},
}

// Relevance weights of the concept signals.
const (
	keywordSignal = 1.0
	entitySignal  = 1.5
	domainSignal  = 2.0
)

type scoredConcept struct {
	concept
	relevance float64
}

// resolveConcepts scores every concept against the query's tokens, its
// task, domain and capability entities and its inferred domain, and returns
// up to maxConcepts with positive relevance.
func resolveConcepts(pq *dq.Processed) []scoredConcept {
	words := make(map[string]struct{})
	for _, t := range pq.Tokens.Filtered {
		words[t] = struct{}{}
	}
	for _, t := range pq.Tokens.Stemmed {
		words[t] = struct{}{}
	}
	var entityText []string
	for _, e := range pq.Entities.Items {
		switch e.Type {
		case dq.EntityTaskType, dq.EntityDomain, dq.EntityCapability:
			entityText = append(entityText, strings.ToLower(e.Normalized))
		}
	}

	var out []scoredConcept
	for _, c := range conceptTaxonomy {
		var rel float64
		for _, kw := range c.keywords {
			if _, ok := words[kw]; ok {
				rel += keywordSignal
			}
			for _, et := range entityText {
				if strings.Contains(et, kw) {
					rel += entitySignal
					break
				}
			}
		}
		if pq.Enrichment.Domain == c.name {
			rel += domainSignal
		}
		if rel > 0 {
			out = append(out, scoredConcept{concept: c, relevance: rel})
		}
	}

	slices.SortStableFunc(out, func(a, b scoredConcept) int {
		return cmp.Compare(b.relevance, a.relevance)
	})
	if len(out) > maxConcepts {
		out = out[:maxConcepts]
	}
	return out
}
