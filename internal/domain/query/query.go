// Package query holds the read-only view produced by query understanding.
package query

import "time"

// Context is optional caller state attached to a query.
type Context struct {
	UserID       string   `json:"user_id,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	PriorQueries []string `json:"prior_queries,omitempty"`
	DomainHints  []string `json:"domain_hints,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// IsZero reports whether no context was supplied.
func (c Context) IsZero() bool {
	return c.UserID == "" && c.SessionID == "" && len(c.PriorQueries) == 0 &&
		len(c.DomainHints) == 0 && len(c.Interests) == 0
}

// POS is a coarse part-of-speech tag.
type POS string

// Part-of-speech tags.
const (
	POSDeterminer  POS = "determiner"
	POSPreposition POS = "preposition"
	POSVerb        POS = "verb"
	POSWh          POS = "wh"
	POSAdjective   POS = "adjective"
	POSNoun        POS = "noun"
)

// Token is one tagged word of the query.
type Token struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Stem       string `json:"stem"`
	POS        POS    `json:"pos"`
	Position   int    `json:"position"`
	Stop       bool   `json:"stop,omitempty"`
}

// Tokens is the tokenization stage output.
type Tokens struct {
	Raw        []string `json:"raw"`
	Normalized []string `json:"normalized"`
	Filtered   []string `json:"filtered"`
	Stemmed    []string `json:"stemmed"`
	Tagged     []Token  `json:"tagged"`
	Bigrams    []string `json:"bigrams,omitempty"`
	Trigrams   []string `json:"trigrams,omitempty"`
}

// IntentType is one of the fixed intent classes.
type IntentType string

// Intent classes.
const (
	IntentSearch         IntentType = "search"
	IntentRecommendation IntentType = "recommendation"
	IntentComparison     IntentType = "comparison"
	IntentExplanation    IntentType = "explanation"
	IntentGeneration     IntentType = "generation"
	IntentAnalysis       IntentType = "analysis"
)

// IntentScore pairs an intent class with its confidence.
type IntentScore struct {
	Intent     IntentType `json:"intent"`
	Confidence float64    `json:"confidence"`
}

// Intent is the intent detection stage output.
type Intent struct {
	Primary    IntentScore   `json:"primary"`
	Alternates []IntentScore `json:"alternates,omitempty"`
}

// EntityType is one of the fixed entity types.
type EntityType string

// Entity types.
const (
	EntityModelName  EntityType = "model_name"
	EntityProvider   EntityType = "provider"
	EntityTaskType   EntityType = "task_type"
	EntityDomain     EntityType = "domain"
	EntityCapability EntityType = "capability"
	EntityMetric     EntityType = "metric"
)

// Entity is a typed span of the raw query.
type Entity struct {
	Type       EntityType `json:"type"`
	Text       string     `json:"text"`
	Normalized string     `json:"normalized"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Context    string     `json:"context"`
	// Related holds indices of entities within the proximity window.
	Related []int `json:"related,omitempty"`
}

// Entities is the entity extraction stage output.
type Entities struct {
	Items    []Entity `json:"items"`
	Coverage float64  `json:"coverage"`
}

// OfType returns the entities of type t in query order.
func (e Entities) OfType(t EntityType) []Entity {
	var out []Entity
	for _, it := range e.Items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out
}

// MeanConfidence averages entity confidences. No entities yields 0.
func (e Entities) MeanConfidence() float64 {
	if len(e.Items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range e.Items {
		sum += it.Confidence
	}
	return sum / float64(len(e.Items))
}

// ExpansionStrategy names a source of expansion terms.
type ExpansionStrategy string

// Expansion strategies in priority order, highest first.
const (
	ExpandSynonym      ExpansionStrategy = "synonym"
	ExpandRelated      ExpansionStrategy = "related"
	ExpandDomain       ExpansionStrategy = "domain"
	ExpandHierarchical ExpansionStrategy = "hierarchical"
	ExpandContextual   ExpansionStrategy = "contextual"
)

// ExpansionPriority lists strategies from highest to lowest priority.
var ExpansionPriority = []ExpansionStrategy{
	ExpandSynonym, ExpandRelated, ExpandDomain, ExpandHierarchical, ExpandContextual,
}

// ExpansionGroup holds the terms one strategy produced.
type ExpansionGroup struct {
	Strategy ExpansionStrategy `json:"strategy"`
	Terms    []string          `json:"terms"`
}

// Expansions is the query expansion stage output, ordered by priority.
type Expansions struct {
	Groups []ExpansionGroup `json:"groups,omitempty"`
}

// Terms flattens all groups in priority order.
func (e Expansions) Terms() []string {
	var out []string
	for _, g := range e.Groups {
		out = append(out, g.Terms...)
	}
	return out
}

// Count returns the total number of expansion terms.
func (e Expansions) Count() int {
	n := 0
	for _, g := range e.Groups {
		n += len(g.Terms)
	}
	return n
}

// For returns the terms produced by strategy s.
func (e Expansions) For(s ExpansionStrategy) []string {
	for _, g := range e.Groups {
		if g.Strategy == s {
			return g.Terms
		}
	}
	return nil
}

// Complexity scores the query on three axes, each in [0,1].
type Complexity struct {
	Lexical   float64 `json:"lexical"`
	Syntactic float64 `json:"syntactic"`
	Semantic  float64 `json:"semantic"`
	Overall   float64 `json:"overall"`
}

// Enrichment is the context enrichment stage output.
type Enrichment struct {
	Complexity      Complexity `json:"complexity"`
	Domain          string     `json:"domain"`
	ProcessedAt     time.Time  `json:"processed_at"`
	UserID          string     `json:"user_id,omitempty"`
	SessionID       string     `json:"session_id,omitempty"`
	PriorQueryCount int        `json:"prior_query_count"`
}

// Role is a semantic role in the query.
type Role string

// Semantic roles.
const (
	RoleSubject    Role = "subject"
	RolePredicate  Role = "predicate"
	RoleObject     Role = "object"
	RoleModifier   Role = "modifier"
	RoleConstraint Role = "constraint"
)

// RoleMatch is a span assigned to a semantic role.
type RoleMatch struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Relation links two concepts.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Structure is the role-based reading of the query.
type Structure struct {
	Subject     string   `json:"subject,omitempty"`
	Predicate   string   `json:"predicate,omitempty"`
	Object      string   `json:"object,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// Semantics is the semantic parsing stage output.
type Semantics struct {
	Roles     []RoleMatch `json:"roles,omitempty"`
	Concepts  []string    `json:"concepts,omitempty"`
	Relations []Relation  `json:"relations,omitempty"`
	Structure Structure   `json:"structure"`
}

// StageFailure records a stage that fell back to its neutral output.
type StageFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Processed is the derived, read-only view of one query.
type Processed struct {
	Query       string         `json:"query"`
	Normalized  string         `json:"normalized"`
	Context     Context        `json:"context"`
	Tokens      Tokens         `json:"tokens"`
	Intent      Intent         `json:"intent"`
	Entities    Entities       `json:"entities"`
	Expansions  Expansions     `json:"expansions"`
	Enrichment  Enrichment     `json:"enrichment"`
	Semantics   Semantics      `json:"semantics"`
	Confidence  float64        `json:"confidence"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Failures    []StageFailure `json:"failures,omitempty"`
}

// SearchText is the text the search stage embeds and matches. It falls back
// to the raw query when normalization produced nothing.
func (p *Processed) SearchText() string {
	if p.Normalized != "" {
		return p.Normalized
	}
	return p.Query
}

// TaskType returns the first extracted task type, or "".
func (p *Processed) TaskType() string {
	if ts := p.Entities.OfType(EntityTaskType); len(ts) > 0 {
		return ts[0].Normalized
	}
	return ""
}
