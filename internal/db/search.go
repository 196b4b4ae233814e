package db

import "github.com/kailas-cloud/modeldex/internal/domain/search/filter"

// VectorField is the stored field holding record embeddings.
const VectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Filters   filter.Expression
	Vector    []float32
	K         int
	// EFRuntime overrides the HNSW query-time candidate list size.
	// Zero keeps the index default.
	EFRuntime     int
	ReturnFields  []string
	IncludeVector bool
}

// TextQuery is the input for text search. Terms are OR-ed. An empty
// TextFields searches every text field of the index.
type TextQuery struct {
	IndexName    string
	Terms        []string
	TextFields   []string
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit. Score is a similarity in [0,1] for
// KNN searches and the backend's text score for text searches.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
	Vector []float32
}
