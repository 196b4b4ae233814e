package search

import (
	"context"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/rerank"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	SearchKNN(
		ctx context.Context, collection string,
		vector []float32, filters filter.Expression, topK, efRuntime int,
		includeVectors bool, st result.SearchType,
	) ([]result.Result, error)

	SearchText(
		ctx context.Context, collection string,
		terms []string, filters filter.Expression, topK int,
	) ([]result.Result, error)

	SupportsTextSearch(ctx context.Context) bool
}

// QueryProcessor turns raw query text into its processed view.
type QueryProcessor interface {
	Process(ctx context.Context, q string, qc dq.Context) (*dq.Processed, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Reranker reorders candidates using caller context. It may return a
// subset; unmentioned candidates keep their relative order after it.
type Reranker interface {
	Rank(ctx context.Context, query string, candidates []rerank.Candidate, rc rerank.Context) ([]rerank.Ranked, error)
}

// ResponseCache is a read-through cache of whole responses.
type ResponseCache interface {
	GetOrCompute(
		ctx context.Context, key string,
		compute func(ctx context.Context) (*result.Response, error),
	) (*result.Response, bool, error)
}
