// Package catalog writes model catalog records and their index to the
// vector store.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

const defaultWriteBatch = 500

// store is the consumer interface for catalog writes (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
}

// KeySpace maps collections and record ids to store names. The search
// repository implements it so reads and writes agree on naming.
type KeySpace interface {
	IndexName(collection string) string
	RecordKey(collection, id string) string
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo writes catalog collections.
type Repo struct {
	store store
	keys  KeySpace
	hnsw  HNSWConfig
	batch int
}

// New creates a catalog repository.
func New(s store, keys KeySpace) *Repo {
	return &Repo{store: s, keys: keys, hnsw: HNSWConfig{M: 16, EFConstruct: 200}, batch: defaultWriteBatch}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the collection index when missing. With recreate an
// existing index is dropped first. It reports whether an index was created.
func (r *Repo) EnsureIndex(ctx context.Context, collection string, vectorDim int, recreate bool) (bool, error) {
	name := r.keys.IndexName(collection)
	if !db.IsValidIdentifier(name) {
		return false, domain.NewConfigError("collection", collection)
	}

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists && !recreate {
		return false, nil
	}
	if exists {
		if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return false, fmt.Errorf("drop index %s: %w", name, err)
		}
	}

	def, err := buildIndex(name, r.keys.RecordKey(collection, ""), vectorDim, r.store.SupportsTextSearch(ctx), r.hnsw)
	if err != nil {
		return false, fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", name, err)
	}
	return true, nil
}

// Upsert writes records with their vectors in pipelined batches.
// vectors[i] belongs to records[i].
func (r *Repo) Upsert(ctx context.Context, collection string, records []dcat.Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("upsert %s: %d records for %d vectors: %w",
			collection, len(records), len(vectors), domain.ErrVectorDimMismatch)
	}

	items := make([]db.HashSetItem, 0, min(len(records), r.batch))
	flush := func() error {
		if len(items) == 0 {
			return nil
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("hset %s: %w", collection, err)
		}
		items = items[:0]
		return nil
	}

	for i := range records {
		fields := records[i].Fields()
		fields[db.VectorField] = db.EncodeVector(vectors[i])
		items = append(items, db.HashSetItem{Key: r.keys.RecordKey(collection, records[i].ID), Fields: fields})
		if len(items) == r.batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Get reads one record back. A missing record is domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, collection, id string) (dcat.Record, error) {
	m, err := r.store.HGetAll(ctx, r.keys.RecordKey(collection, id))
	if errors.Is(err, db.ErrKeyNotFound) {
		return dcat.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return dcat.Record{}, fmt.Errorf("hgetall %s/%s: %w", collection, id, err)
	}
	if len(m) == 0 {
		return dcat.Record{}, domain.ErrNotFound
	}
	return dcat.FromFields(id, m)
}
