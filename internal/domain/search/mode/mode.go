package mode

// Mode selects which retrieval channels a search runs.
type Mode string

// Search mode constants.
const (
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
	// Hybrid fuses semantic and keyword rankings.
	Hybrid Mode = "hybrid"
	// Contextual is hybrid search steered by the caller's session history.
	Contextual Mode = "contextual"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Semantic || m == Keyword || m == Hybrid || m == Contextual
}

// NeedsVectors reports whether the mode runs a vector strategy.
func (m Mode) NeedsVectors() bool { return m != Keyword }

// NeedsKeywords reports whether the mode runs keyword search.
func (m Mode) NeedsKeywords() bool { return m != Semantic }
