package result

import (
	"github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/mode"
	"github.com/kailas-cloud/modeldex/internal/domain/search/strategy"
)

// Response is the ordered, paginated outcome of one search.
type Response struct {
	Results     []Result          `json:"results"`
	Total       int               `json:"total"`
	Offset      int               `json:"offset"`
	Limit       int               `json:"limit"`
	Intent      query.IntentScore `json:"intent"`
	Metadata    Metadata          `json:"metadata"`
	Facets      Facets            `json:"facets,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// Metadata describes how the response was produced.
type Metadata struct {
	RequestID    string            `json:"request_id"`
	Mode         mode.Mode         `json:"mode"`
	Strategy     strategy.Strategy `json:"vector_strategy"`
	HybridWeight float64           `json:"hybrid_weight"`
	Filters      string            `json:"filters,omitempty"`
	Collections  []string          `json:"collections"`
	// FallbackMode is set when the requested mode could not run.
	FallbackMode mode.Mode `json:"fallback_mode,omitempty"`
	// Degraded lists data sources that failed and contributed nothing.
	Degraded    []string           `json:"degraded,omitempty"`
	Reranked    bool               `json:"reranked"`
	Diversified bool               `json:"diversified"`
	TimingsMS   map[string]float64 `json:"timings_ms"`
}

// Cacheable reports whether r ran without degraded sources or a mode
// fallback.
func (r *Response) Cacheable() bool {
	return r != nil && len(r.Metadata.Degraded) == 0 && r.Metadata.FallbackMode == ""
}

// Facets counts values of categorical payload fields over the ranked set.
type Facets map[string]map[string]int

// BuildFacets counts provider, model type and domain values in rs.
func BuildFacets(rs []Result) Facets {
	if len(rs) == 0 {
		return nil
	}
	f := Facets{"provider": {}, "model_type": {}, "domain": {}}
	for i := range rs {
		rec := &rs[i].record
		f["provider"][rec.Provider]++
		f["model_type"][rec.ModelType]++
		f["domain"][rec.Domain]++
	}
	return f
}
