// Package strategy enumerates the vector search strategies.
package strategy

// Strategy is the nearest-neighbor retrieval plan used for the semantic channel.
type Strategy string

// Vector strategy constants.
const (
	Exact        Strategy = "exact"
	Approximate  Strategy = "approximate"
	MultiVector  Strategy = "multi_vector"
	Hierarchical Strategy = "hierarchical"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	switch s {
	case Exact, Approximate, MultiVector, Hierarchical:
		return true
	default:
		return false
	}
}
