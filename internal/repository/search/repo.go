package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store        store
	logger       *zap.Logger
	keyPrefix    string
	returnFields []string
}

// Option configures a Repo.
type Option func(*Repo)

// WithKeyPrefix namespaces index names as "<prefix><collection>:idx" and
// strips "<prefix><collection>:" from returned keys. Without a prefix the
// collection name is the index name and keys are record ids.
func WithKeyPrefix(prefix string) Option {
	return func(r *Repo) { r.keyPrefix = prefix }
}

// WithReturnFields restricts the fields requested from the store. Stores
// that cannot return every column (milvus) need the explicit list.
func WithReturnFields(fields ...string) Option {
	return func(r *Repo) { r.returnFields = fields }
}

// New creates a search repository.
func New(s store, logger *zap.Logger, opts ...Option) *Repo {
	r := &Repo{store: s, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SupportsTextSearch proxies the capability check from the store.
func (r *Repo) SupportsTextSearch(ctx context.Context) bool {
	return r.store.SupportsTextSearch(ctx)
}

// IndexName returns the store index backing collection.
func (r *Repo) IndexName(collection string) string {
	if r.keyPrefix == "" {
		return collection
	}
	return r.keyPrefix + collection + ":idx"
}

// RecordKey returns the store key of record id in collection.
func (r *Repo) RecordKey(collection, id string) string {
	if r.keyPrefix == "" {
		return id
	}
	return r.keyPrefix + collection + ":" + id
}

// SearchKNN performs a KNN (vector similarity) search on a collection with
// filter pre-filtering. Every hit is tagged with st.
func (r *Repo) SearchKNN(
	ctx context.Context, collection string,
	vector []float32, filters filter.Expression, topK, efRuntime int,
	includeVectors bool, st result.SearchType,
) ([]result.Result, error) {
	q := &db.KNNQuery{
		IndexName:     r.IndexName(collection),
		Filters:       filters,
		Vector:        vector,
		K:             topK,
		EFRuntime:     efRuntime,
		ReturnFields:  r.returnFields,
		IncludeVector: includeVectors,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", collection, err)
	}
	return r.toResults(sr, collection, st), nil
}

// SearchText performs an OR keyword search over the name and description
// fields. Scores are the store's raw text scores.
func (r *Repo) SearchText(
	ctx context.Context, collection string,
	terms []string, filters filter.Expression, topK int,
) ([]result.Result, error) {
	q := &db.TextQuery{
		IndexName:    r.IndexName(collection),
		Terms:        terms,
		TextFields:   catalog.TextFields,
		Filters:      filters,
		TopK:         topK,
		ReturnFields: r.returnFields,
	}

	sr, err := r.store.SearchText(ctx, q)
	if errors.Is(err, db.ErrTextSearchUnsupported) {
		return nil, domain.ErrKeywordSearchNotSupported
	}
	if err != nil {
		return nil, fmt.Errorf("search text %s: %w", collection, err)
	}
	return r.toResults(sr, collection, result.TypeKeyword), nil
}

// toResults maps store entries onto catalog records. Malformed records are
// logged and skipped.
func (r *Repo) toResults(sr *db.SearchResult, collection string, st result.SearchType) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := r.RecordKey(collection, "")
	results := make([]result.Result, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		rec, err := catalog.FromFields(id, entry.Fields)
		if err != nil {
			r.logger.Warn("skip catalog record",
				zap.String("collection", collection),
				zap.String("key", entry.Key),
				zap.Error(err),
			)
			continue
		}
		results = append(results, result.New(rec.ID, entry.Score, rec, collection, st, entry.Vector))
	}
	return results
}
