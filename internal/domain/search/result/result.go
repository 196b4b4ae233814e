package result

import (
	"encoding/json"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

// SearchType tags the strategy that produced a result.
type SearchType string

// Search types.
const (
	TypeSemantic             SearchType = "semantic"
	TypeSemanticApproximate  SearchType = "semantic_approximate"
	TypeSemanticExpanded     SearchType = "semantic_expanded"
	TypeSemanticHierarchical SearchType = "semantic_hierarchical"
	TypeKeyword              SearchType = "keyword"
)

// IsSemantic reports whether t comes from the vector channel.
func (t SearchType) IsSemantic() bool { return t != TypeKeyword }

// Provenance records one strategy's contribution to a result.
type Provenance struct {
	Type       SearchType `json:"type"`
	Score      float64    `json:"score"`
	Collection string     `json:"collection,omitempty"`
	// Term is the expansion term for semantic_expanded hits.
	Term string `json:"term,omitempty"`
	// Concept is the concept cluster for semantic_hierarchical hits.
	Concept string `json:"concept,omitempty"`
}

// Explanation tells the caller why a result is where it is.
type Explanation struct {
	Sources        []SearchType `json:"sources"`
	MatchedTerms   []string     `json:"matched_terms,omitempty"`
	SemanticRank   int          `json:"semantic_rank,omitempty"`
	KeywordRank    int          `json:"keyword_rank,omitempty"`
	RerankPosition int          `json:"rerank_position,omitempty"`
}

// Result is a single search hit.
type Result struct {
	id          string
	score       float64
	record      catalog.Record
	collection  string
	searchType  SearchType
	provenance  []Provenance
	vector      []float32
	explanation *Explanation
}

// New creates a search result with a single provenance entry.
func New(
	id string, score float64, record catalog.Record,
	collection string, st SearchType, vector []float32,
) Result {
	return Result{
		id: id, score: score, record: record,
		collection: collection, searchType: st, vector: vector,
		provenance: []Provenance{{Type: st, Score: score, Collection: collection}},
	}
}

// ID returns the catalog identifier.
func (r *Result) ID() string { return r.id }

// Score returns the relevance score in [0,1].
func (r *Result) Score() float64 { return r.score }

// Record returns the catalog record payload.
func (r *Result) Record() catalog.Record { return r.record }

// Collection returns the source collection.
func (r *Result) Collection() string { return r.collection }

// SearchType returns the strategy of the winning record.
func (r *Result) SearchType() SearchType { return r.searchType }

// Provenance returns every contributing strategy.
func (r *Result) Provenance() []Provenance { return r.provenance }

// Vector returns the stored embedding, if the store returned one.
func (r *Result) Vector() []float32 { return r.vector }

// Explanation returns the attached explanation, or nil.
func (r *Result) Explanation() *Explanation { return r.explanation }

// WithScore returns a copy of r carrying score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// WithProvenance returns a copy of r whose single provenance entry carries
// the given expansion term and concept.
func (r Result) WithProvenance(term, concept string) Result {
	p := make([]Provenance, len(r.provenance))
	copy(p, r.provenance)
	for i := range p {
		p[i].Term, p[i].Concept = term, concept
	}
	r.provenance = p
	return r
}

// WithExplanation returns a copy of r carrying e.
func (r Result) WithExplanation(e Explanation) Result {
	r.explanation = &e
	return r
}

// Merge folds other into r: the higher-scoring record wins and the
// provenance of both is kept.
func Merge(r, other Result) Result {
	winner, loser := r, other
	if other.score > r.score {
		winner, loser = other, r
	}
	prov := make([]Provenance, 0, len(winner.provenance)+len(loser.provenance))
	prov = append(prov, winner.provenance...)
	prov = append(prov, loser.provenance...)
	winner.provenance = prov
	if winner.vector == nil {
		winner.vector = loser.vector
	}
	return winner
}

// Dedupe merges results sharing an id, keeping first-seen order.
func Dedupe(in []Result) []Result {
	idx := make(map[string]int, len(in))
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if i, ok := idx[r.id]; ok {
			out[i] = Merge(out[i], r)
			continue
		}
		idx[r.id] = len(out)
		out = append(out, r)
	}
	return out
}

type resultJSON struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	Record      catalog.Record `json:"record"`
	Collection  string         `json:"collection"`
	SearchType  SearchType     `json:"search_type"`
	Provenance  []Provenance   `json:"provenance"`
	Vector      []float32      `json:"vector,omitempty"`
	Explanation *Explanation   `json:"explanation,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		ID: r.id, Score: r.score, Record: r.record, Collection: r.collection,
		SearchType: r.searchType, Provenance: r.provenance, Vector: r.vector,
		Explanation: r.explanation,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result{
		id: w.ID, score: w.Score, record: w.Record, collection: w.Collection,
		searchType: w.SearchType, provenance: w.Provenance, vector: w.Vector,
		explanation: w.Explanation,
	}
	return nil
}
