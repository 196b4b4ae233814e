// Package milvus implements the read side of db.Searcher on Milvus.
// Catalog collections hold an "id" VarChar primary key, the catalog record
// fields as scalar columns and a "vector" FloatVector column with an HNSW
// COSINE index.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
)

const (
	idField   = "id"
	defaultEF = 64
)

// milvusClient is the subset of client.Client the store calls.
type milvusClient interface {
	Search(ctx context.Context, collName string, partitions []string, expr string,
		outputFields []string, vectors []entity.Vector, vectorField string,
		metricType entity.MetricType, topK int, sp entity.SearchParam,
		opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	HasCollection(ctx context.Context, collName string) (bool, error)
	Close() error
}

// Config holds connection parameters for a Milvus store.
type Config struct {
	Address  string
	Username string
	Password string
	// HealthCollection is probed by Ping.
	HealthCollection string
	// DefaultEF is the HNSW ef used when a query sets no EFRuntime.
	DefaultEF int
}

// Store is a read-only catalog searcher backed by Milvus.
type Store struct {
	client    milvusClient
	health    string
	defaultEF int
}

var _ db.Searcher = (*Store)(nil)

// NewStore connects to Milvus.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return newStore(c, cfg), nil
}

func newStore(c milvusClient, cfg Config) *Store {
	ef := cfg.DefaultEF
	if ef <= 0 {
		ef = defaultEF
	}
	return &Store{client: c, health: cfg.HealthCollection, defaultEF: ef}
}

// Ping checks that the health collection can be looked up.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HasCollection(ctx, s.health); err != nil {
		return &db.Error{Op: db.OpMilvusHas, Err: err}
	}
	return nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// SupportsTextSearch returns false: keyword matching is done by the caller
// over vector candidates.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return false
}

// SearchText always fails with db.ErrTextSearchUnsupported.
func (s *Store) SearchText(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
	return nil, db.ErrTextSearchUnsupported
}

// SearchKNN runs an HNSW cosine search on the collection named by q.IndexName.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	ef := q.EFRuntime
	if ef <= 0 {
		ef = s.defaultEF
	}
	// Milvus rejects ef below topK.
	sp, err := entity.NewIndexHNSWSearchParam(max(ef, q.K))
	if err != nil {
		return nil, fmt.Errorf("search param: %w", err)
	}

	outputs := append([]string{idField}, q.ReturnFields...)
	if q.IncludeVector {
		outputs = append(outputs, db.VectorField)
	}

	results, err := s.client.Search(ctx,
		q.IndexName,
		[]string{},
		buildExpr(q.Filters),
		outputs,
		[]entity.Vector{entity.FloatVector(q.Vector)},
		db.VectorField,
		entity.COSINE,
		q.K,
		sp,
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpMilvusSearch, Err: err}
	}

	out := &db.SearchResult{}
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			entry := db.SearchEntry{Fields: make(map[string]string, len(rs.Fields))}
			if i < len(rs.Scores) {
				entry.Score = domain.SimilarityScore(float64(rs.Scores[i]))
			}
			for _, col := range rs.Fields {
				readColumn(col, i, &entry)
			}
			entry.Key = entry.Fields[idField]
			if entry.Key == "" {
				continue
			}
			out.Entries = append(out.Entries, entry)
		}
	}
	out.Total = len(out.Entries)
	return out, nil
}

// readColumn copies row i of col into entry.
func readColumn(col entity.Column, i int, entry *db.SearchEntry) {
	if col == nil || i >= col.Len() {
		return
	}
	name := col.Name()
	switch c := col.(type) {
	case *entity.ColumnVarChar:
		entry.Fields[name] = c.Data()[i]
	case *entity.ColumnString:
		entry.Fields[name] = c.Data()[i]
	case *entity.ColumnDouble:
		entry.Fields[name] = strconv.FormatFloat(c.Data()[i], 'f', -1, 64)
	case *entity.ColumnFloat:
		entry.Fields[name] = strconv.FormatFloat(float64(c.Data()[i]), 'f', -1, 32)
	case *entity.ColumnInt64:
		entry.Fields[name] = strconv.FormatInt(c.Data()[i], 10)
	case *entity.ColumnInt32:
		entry.Fields[name] = strconv.FormatInt(int64(c.Data()[i]), 10)
	case *entity.ColumnFloatVector:
		if name == db.VectorField {
			entry.Vector = c.Data()[i]
		}
	}
}
