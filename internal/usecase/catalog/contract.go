package catalog

import (
	"context"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

// Writer persists catalog collections.
type Writer interface {
	EnsureIndex(ctx context.Context, collection string, vectorDim int, recreate bool) (bool, error)
	Upsert(ctx context.Context, collection string, records []dcat.Record, vectors [][]float32) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
