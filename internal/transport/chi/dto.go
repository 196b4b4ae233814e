package chi

import (
	"fmt"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/mode"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/domain/search/strategy"
)

// ErrorCode is the machine-readable error kind of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest   ErrorCode = "bad_request"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeNotFound     ErrorCode = "not_found"
	CodeRateLimited  ErrorCode = "rate_limited"
	CodeInternal     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query               string            `json:"query"`
	Mode                string            `json:"mode,omitempty"`
	Limit               int               `json:"limit,omitempty"`
	Offset              int               `json:"offset,omitempty"`
	Filters             *FilterExpression `json:"filters,omitempty"`
	Collections         []string          `json:"collections,omitempty"`
	SimilarityThreshold *float64          `json:"similarity_threshold,omitempty"`
	VectorStrategy      string            `json:"vector_strategy,omitempty"`
	Rerank              *bool             `json:"rerank,omitempty"`
	Diversify           *bool             `json:"diversify,omitempty"`
	HybridWeight        *float64          `json:"hybrid_weight,omitempty"`
	Context             *dq.Context       `json:"context,omitempty"`
}

// FilterExpression is the wire form of filter.Expression.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// FilterCondition holds exactly one of Match, AnyOf or Range.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	AnyOf []string     `json:"any_of,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// RangeFilter bounds a numeric field.
type RangeFilter struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// ClusterOptions is the wire form of cluster.Params.
type ClusterOptions struct {
	Algorithm           string   `json:"algorithm,omitempty"`
	Features            []string `json:"features,omitempty"`
	K                   int      `json:"k,omitempty"`
	LabelStrategy       string   `json:"labeling_strategy,omitempty"`
	Linkage             string   `json:"linkage,omitempty"`
	DistanceThreshold   float64  `json:"distance_threshold,omitempty"`
	Eps                 float64  `json:"eps,omitempty"`
	MinPoints           int      `json:"min_points,omitempty"`
	MaxClusters         int      `json:"max_clusters,omitempty"`
	MaxClusterSize      int      `json:"max_cluster_size,omitempty"`
	SimilarityThreshold float64  `json:"similarity_threshold,omitempty"`
	Seed                *int64   `json:"seed,omitempty"`
}

// ClusterRequest is the body of POST /v1/cluster. Either Results or Search
// must be set; Search runs a search first and clusters its page.
type ClusterRequest struct {
	Results []result.Result `json:"results,omitempty"`
	Search  *SearchRequest  `json:"search,omitempty"`
	Options ClusterOptions  `json:"options"`
}

// ClusterResponse carries the clustered results next to the partition, so
// member indexes can be resolved by the client.
type ClusterResponse struct {
	*dc.Response
	Results []result.Result `json:"results"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (r *SearchRequest) params() (request.Params, error) {
	filters, err := r.Filters.expression()
	if err != nil {
		return request.Params{}, err
	}
	p := request.Params{
		Mode:                mode.Mode(r.Mode),
		Limit:               r.Limit,
		Offset:              r.Offset,
		Filters:             filters,
		Collections:         r.Collections,
		SimilarityThreshold: r.SimilarityThreshold,
		VectorStrategy:      strategy.Strategy(r.VectorStrategy),
		Rerank:              r.Rerank,
		Diversify:           r.Diversify,
		HybridWeight:        r.HybridWeight,
	}
	if r.Context != nil {
		p.Context = *r.Context
	}
	return p, nil
}

func (f *FilterExpression) expression() (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}
	must, err := conditions(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditions(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditions(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, filterError(err)
	}
	return expr, nil
}

func conditions(cs []FilterCondition) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := c.condition()
		if err != nil {
			return nil, filterError(err)
		}
		out = append(out, cond)
	}
	return out, nil
}

func (c FilterCondition) condition() (filter.Condition, error) {
	set := 0
	if c.Match != nil {
		set++
	}
	if len(c.AnyOf) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{}, fmt.Errorf("condition on %q needs exactly one of match, any_of, range", c.Key)
	}

	switch {
	case c.Match != nil:
		return filter.NewMatch(c.Key, *c.Match)
	case len(c.AnyOf) > 0:
		return filter.NewAnyOf(c.Key, c.AnyOf)
	default:
		rf, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range on %q: %w", c.Key, err)
		}
		return filter.NewRange(c.Key, rf)
	}
}

func filterError(err error) error {
	if domain.IsConfigError(err) {
		return err
	}
	return domain.NewConfigError("filters", err.Error())
}

func (o ClusterOptions) params() dc.Params {
	features := make([]dc.Channel, len(o.Features))
	for i, f := range o.Features {
		features[i] = dc.Channel(f)
	}
	return dc.Params{
		Algorithm:           dc.Algorithm(o.Algorithm),
		Features:            features,
		K:                   o.K,
		LabelStrategy:       dc.LabelStrategy(o.LabelStrategy),
		Linkage:             dc.Linkage(o.Linkage),
		DistanceThreshold:   o.DistanceThreshold,
		Eps:                 o.Eps,
		MinPoints:           o.MinPoints,
		MaxClusters:         o.MaxClusters,
		MaxClusterSize:      o.MaxClusterSize,
		SimilarityThreshold: o.SimilarityThreshold,
		Seed:                o.Seed,
	}
}
