package cluster

import (
	"context"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

// Embedder generates the embeddings missing from clustered results.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ResponseCache is a read-through cache of clustering responses.
type ResponseCache interface {
	GetOrCompute(
		ctx context.Context, key string,
		compute func(ctx context.Context) (*dc.Response, error),
	) (*dc.Response, bool, error)
}

// Pool runs CPU-bound work off the request goroutine. *ants.Pool satisfies it.
type Pool interface {
	Submit(task func()) error
}
