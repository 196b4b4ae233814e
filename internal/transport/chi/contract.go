package chi

import (
	"context"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/modeldex/internal/usecase/health"
)

// Searcher runs hybrid searches.
type Searcher interface {
	Search(ctx context.Context, q string, p request.Params) (*result.Response, error)
}

// Clusterer groups and labels result sets.
type Clusterer interface {
	Cluster(ctx context.Context, results []result.Result, p dc.Params) (*dc.Response, error)
}

// Processor exposes query understanding.
type Processor interface {
	Process(ctx context.Context, q string, qc dq.Context) (*dq.Processed, error)
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
