// Package memory is an in-process catalog backend. It implements the same
// hash, key-value, index and search contracts as the Redis store with
// brute-force cosine ranking and substring text matching.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
)

type kvEntry struct {
	value   []byte
	expires time.Time
}

// Store is a mutex-guarded in-memory backend.
type Store struct {
	mu      sync.RWMutex
	indexes map[string][]string // index name -> key prefixes
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	now     func() time.Time
}

var _ db.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		indexes: make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// WaitForReady always succeeds.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// --- HashStore ---

// HSetMulti merges the fields of every item into its hash.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		h, ok := s.hashes[it.Key]
		if !ok {
			h = make(map[string]string, len(it.Fields))
			s.hashes[it.Key] = h
		}
		maps.Copy(h, it.Fields)
	}
	return nil
}

// HGetAll returns a copy of the hash at key or db.ErrKeyNotFound.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return maps.Clone(h), nil
}

// --- KVStore ---

// Get returns the value at key or db.ErrKeyNotFound once expired.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.kv[key]
	s.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && !s.now().Before(e.expires)) {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(e.value), nil
}

// SetWithTTL stores value at key. A non-positive ttl never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := kvEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.kv[key] = e
	s.mu.Unlock()
	return nil
}

// --- IndexManager ---

// CreateIndex registers an index over the definition's key prefixes.
// An index without prefixes covers every hash.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("validate index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	s.indexes[def.Name] = slices.Clone(def.Prefixes)
	return nil
}

// DropIndex removes the index, keeping its hashes.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether the index was created.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// --- Searcher ---

// SupportsTextSearch returns true.
func (s *Store) SupportsTextSearch(_ context.Context) bool { return true }

// SearchKNN ranks every indexed hash that passes the filters by cosine
// similarity to q.Vector. Ties are broken by key.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	prefixes, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	var entries []db.SearchEntry
	for key, h := range s.hashes {
		if !hasAnyPrefix(key, prefixes) || !passesFilter(key, h, q.Filters) {
			continue
		}
		vec := decodeVector(h[db.VectorField])
		if len(vec) != len(q.Vector) {
			continue
		}
		e := db.SearchEntry{
			Key:    key,
			Score:  domain.SimilarityScore(domain.Cosine(q.Vector, vec)),
			Fields: project(h, q.ReturnFields),
		}
		if q.IncludeVector {
			e.Vector = vec
		}
		entries = append(entries, e)
	}
	return rank(entries, q.K), nil
}

// SearchText scores indexed hashes by the number of terms found as
// case-insensitive substrings of the text fields.
func (s *Store) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	terms := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("at least one term is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	prefixes, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	var entries []db.SearchEntry
	for key, h := range s.hashes {
		if !hasAnyPrefix(key, prefixes) || !passesFilter(key, h, q.Filters) {
			continue
		}
		text := strings.ToLower(searchable(h, q.TextFields))
		var hits int
		for _, t := range terms {
			if strings.Contains(text, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  float64(hits),
			Fields: project(h, q.ReturnFields),
		})
	}
	return rank(entries, q.TopK), nil
}

func rank(entries []db.SearchEntry, k int) *db.SearchResult {
	slices.SortFunc(entries, func(a, b db.SearchEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	total := len(entries)
	if len(entries) > k {
		entries = entries[:k]
	}
	return &db.SearchResult{Total: total, Entries: entries}
}

// passesFilter evaluates expr against the hash as a catalog record. Hashes
// that do not form a valid record only pass an empty filter.
func passesFilter(key string, h map[string]string, expr filter.Expression) bool {
	if expr.IsEmpty() {
		return true
	}
	rec, err := catalog.FromFields(key, h)
	if err != nil {
		return false
	}
	return expr.Matches(&rec)
}

func hasAnyPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// project copies the requested fields, or every non-vector field when none
// are requested.
func project(h map[string]string, fields []string) map[string]string {
	out := make(map[string]string, len(h))
	if len(fields) == 0 {
		for k, v := range h {
			if k != db.VectorField {
				out[k] = v
			}
		}
		return out
	}
	for _, f := range fields {
		if v, ok := h[f]; ok && f != db.VectorField {
			out[f] = v
		}
	}
	return out
}

func searchable(h map[string]string, fields []string) string {
	if len(fields) == 0 {
		fields = catalog.TextFields
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, h[f])
	}
	return strings.Join(parts, " ")
}

// EncodeVector serializes v the way the Redis store expects HASH vectors.
func EncodeVector(v []float32) string { return db.EncodeVector(v) }

func decodeVector(s string) []float32 { return db.DecodeVector(s) }
