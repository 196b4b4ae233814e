package app

import (
	"context"
	"slices"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

type searcher interface {
	Search(ctx context.Context, q string, p request.Params) (*result.Response, error)
}

type clusterer interface {
	Cluster(ctx context.Context, results []result.Result, p dc.Params) (*dc.Response, error)
}

type processor interface {
	Process(ctx context.Context, q string, qc dq.Context) (*dq.Processed, error)
}

// Defaults are deployment-level values applied to options the caller left unset.
type Defaults struct {
	Collections         []string
	Limit               int
	SimilarityThreshold *float64
	HybridWeight        *float64
	MaxClusters         int
	Seed                int64
}

// Engine is the entry point of the three retrieval operations. It fills
// unset options from Defaults and delegates to the services.
type Engine struct {
	search   searcher
	cluster  clusterer
	process  processor
	defaults Defaults
}

// NewEngine creates an Engine.
func NewEngine(s searcher, c clusterer, p processor, d Defaults) *Engine {
	return &Engine{search: s, cluster: c, process: p, defaults: d}
}

// Search runs a hybrid search.
func (e *Engine) Search(ctx context.Context, q string, p request.Params) (*result.Response, error) {
	return e.search.Search(ctx, q, e.searchParams(p))
}

// Cluster groups and labels results.
func (e *Engine) Cluster(ctx context.Context, results []result.Result, p dc.Params) (*dc.Response, error) {
	return e.cluster.Cluster(ctx, results, e.clusterParams(p))
}

// Process runs query understanding.
func (e *Engine) Process(ctx context.Context, q string, qc dq.Context) (*dq.Processed, error) {
	return e.process.Process(ctx, q, qc)
}

// SearchAndCluster clusters the page returned by a search.
func (e *Engine) SearchAndCluster(
	ctx context.Context, q string, sp request.Params, cp dc.Params,
) (*result.Response, *dc.Response, error) {
	resp, err := e.Search(ctx, q, sp)
	if err != nil {
		return nil, nil, err
	}
	clustered, err := e.Cluster(ctx, resp.Results, cp)
	if err != nil {
		return nil, nil, err
	}
	return resp, clustered, nil
}

func (e *Engine) searchParams(p request.Params) request.Params {
	d := e.defaults
	if len(p.Collections) == 0 && len(d.Collections) > 0 {
		p.Collections = slices.Clone(d.Collections)
	}
	if p.Limit == 0 {
		p.Limit = d.Limit
	}
	if p.SimilarityThreshold == nil {
		p.SimilarityThreshold = d.SimilarityThreshold
	}
	if p.HybridWeight == nil {
		p.HybridWeight = d.HybridWeight
	}
	return p
}

func (e *Engine) clusterParams(p dc.Params) dc.Params {
	if p.MaxClusters == 0 {
		p.MaxClusters = e.defaults.MaxClusters
	}
	if p.Seed == nil && e.defaults.Seed != 0 {
		seed := e.defaults.Seed
		p.Seed = &seed
	}
	return p
}
