package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// --- SearchKNN ---

func TestSearchKNN_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t, WithKeyPrefix("modeldex:"))
	ctx := context.Background()

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "modeldex:model_descriptions:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		if q.K != 10 {
			t.Errorf("unexpected K: %d", q.K)
		}
		if q.EFRuntime != 32 {
			t.Errorf("unexpected EFRuntime: %d", q.EFRuntime)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{
					Key:   "modeldex:model_descriptions:gpt-4o",
					Score: 0.877,
					Fields: map[string]string{
						"name":          "GPT-4o",
						"provider":      "OpenAI",
						"quality_index": "88.5",
						"capabilities":  "vision,tool use",
					},
				},
				{
					Key:   "modeldex:model_descriptions:llama-3",
					Score: 0.544,
					Fields: map[string]string{
						"model_name": "Llama 3",
					},
				},
			},
		}, nil
	}

	results, err := repo.SearchKNN(ctx, "model_descriptions", testVector(),
		filter.Expression{}, 10, 32, false, result.TypeSemanticApproximate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.ID() != "gpt-4o" {
		t.Fatalf("expected ID gpt-4o, got %s", first.ID())
	}
	// Score comes from entry.Score set by db layer.
	if first.Score() != 0.877 {
		t.Fatalf("expected score 0.877, got %f", first.Score())
	}
	if first.SearchType() != result.TypeSemanticApproximate {
		t.Fatalf("expected search type semantic_approximate, got %s", first.SearchType())
	}
	if first.Collection() != "model_descriptions" {
		t.Fatalf("expected collection model_descriptions, got %s", first.Collection())
	}
	rec := first.Record()
	if rec.Performance.QualityIndex != 88.5 || len(rec.Capabilities) != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	second := results[1].Record()
	if second.Name != "Llama 3" {
		t.Fatalf("expected alias name resolved, got %q", second.Name)
	}
	if second.Provider != catalog.DefaultProvider {
		t.Fatalf("expected default provider, got %q", second.Provider)
	}
}

func TestSearchKNN_NoPrefix(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "model_metadata" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: "claude", Score: 0.7, Fields: map[string]string{"name": "Claude"}},
		}}, nil
	}

	results, err := repo.SearchKNN(context.Background(), "model_metadata", testVector(),
		filter.Expression{}, 5, 0, false, result.TypeSemantic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID() != "claude" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchKNN_IncludeVectors(t *testing.T) {
	repo, ms := newTestRepo(t, WithReturnFields(catalog.StoredFields...))
	ctx := context.Background()

	vec := []float32{0.1, 0.2, 0.3}
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if !q.IncludeVector {
			t.Error("expected IncludeVector=true")
		}
		if len(q.ReturnFields) != len(catalog.StoredFields) {
			t.Errorf("expected %d return fields, got %d", len(catalog.StoredFields), len(q.ReturnFields))
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				{Key: "a", Score: 0.9, Fields: map[string]string{"name": "A"}, Vector: vec},
			},
		}, nil
	}

	results, err := repo.SearchKNN(ctx, "c", testVector(), filter.Expression{}, 10, 0, true, result.TypeSemantic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Vector()) != 3 {
		t.Fatalf("expected vector len 3, got %d", len(results[0].Vector()))
	}
}

func TestSearchKNN_SkipsMalformedRecords(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "no-name", Score: 0.9, Fields: map[string]string{"provider": "X"}},
			{Key: "bad-quality", Score: 0.8, Fields: map[string]string{"name": "B", "quality_index": "high"}},
			{Key: "ok", Score: 0.7, Fields: map[string]string{"name": "OK"}},
		}}, nil
	}

	results, err := repo.SearchKNN(context.Background(), "c", testVector(),
		filter.Expression{}, 10, 0, false, result.TypeSemantic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID() != "ok" {
		t.Fatalf("expected only the valid record, got %d results", len(results))
	}
}

func TestSearchKNN_EmptyResults(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 0}, nil
	}

	results, err := repo.SearchKNN(ctx, "c", testVector(), filter.Expression{}, 10, 0, false, result.TypeSemantic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearchKNN_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("index not found")
	}

	_, err := repo.SearchKNN(ctx, "c", testVector(), filter.Expression{}, 10, 0, false, result.TypeSemantic)
	if err == nil {
		t.Fatal("expected error on SearchKNN failure")
	}
}

func TestSearchKNN_WithFilter(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	expr := mustExpression(t, []filter.Condition{mustMatch(t, "provider", "Meta")}, nil, nil)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.Filters.IsEmpty() {
			t.Error("expected non-empty filters")
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				{Key: "llama-3", Score: 0.9, Fields: map[string]string{"name": "Llama 3", "provider": "Meta"}},
			},
		}, nil
	}

	results, err := repo.SearchKNN(ctx, "c", testVector(), expr, 10, 0, false, result.TypeSemantic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

// --- SearchText ---

func TestSearchText_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t, WithKeyPrefix("modeldex:"))
	ctx := context.Background()

	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.IndexName != "modeldex:model_descriptions:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		if len(q.Terms) != 2 || q.Terms[0] != "code" {
			t.Errorf("unexpected terms: %v", q.Terms)
		}
		if len(q.TextFields) != 2 {
			t.Errorf("unexpected text fields: %v", q.TextFields)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "modeldex:model_descriptions:codestral", Score: 4.2, Fields: map[string]string{"name": "Codestral"}},
				{Key: "modeldex:model_descriptions:gpt-4o", Score: 1.1, Fields: map[string]string{"name": "GPT-4o"}},
			},
		}, nil
	}

	results, err := repo.SearchText(ctx, "model_descriptions", []string{"code", "generation"}, filter.Expression{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID() != "codestral" {
		t.Fatalf("expected ID codestral, got %s", results[0].ID())
	}
	if results[0].SearchType() != result.TypeKeyword {
		t.Fatalf("expected keyword search type, got %s", results[0].SearchType())
	}
}

func TestSearchText_Unsupported(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, db.ErrTextSearchUnsupported
	}

	_, err := repo.SearchText(context.Background(), "c", []string{"x"}, filter.Expression{}, 10)
	if !errors.Is(err, domain.ErrKeywordSearchNotSupported) {
		t.Fatalf("expected ErrKeywordSearchNotSupported, got %v", err)
	}
}

func TestSearchText_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, errors.New("index not found")
	}

	_, err := repo.SearchText(ctx, "c", []string{"test"}, filter.Expression{}, 10)
	if err == nil {
		t.Fatal("expected error on SearchText failure")
	}
}

// --- SupportsTextSearch ---

func TestSupportsTextSearch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.supportsTextSearchFn = func(_ context.Context) bool { return true }

	if !repo.SupportsTextSearch(ctx) {
		t.Fatal("expected SupportsTextSearch=true")
	}
}

func TestRecordKey(t *testing.T) {
	repo, _ := newTestRepo(t, WithKeyPrefix("modeldex:"))
	if got := repo.RecordKey("c", "a"); got != "modeldex:c:a" {
		t.Fatalf("unexpected key %q", got)
	}
	plain, _ := newTestRepo(t)
	if got := plain.RecordKey("c", "a"); got != "a" {
		t.Fatalf("unexpected key %q", got)
	}
}
