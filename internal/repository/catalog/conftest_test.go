package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/db"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
	"github.com/kailas-cloud/modeldex/internal/repository/search"
)

const testPrefix = "modeldex:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn        func(ctx context.Context, items []db.HashSetItem) error
	createIndexFn      func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn        func(ctx context.Context, name string) error
	indexExistsFn      func(ctx context.Context, name string) (bool, error)
	supportsTextSearch bool

	hsetBatches [][]db.HashSetItem
	created     []*db.IndexDefinition
	dropped     []string
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.hsetBatches = append(m.hsetBatches, append([]db.HashSetItem(nil), items...))
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, _ string) (map[string]string, error) {
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def)
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SupportsTextSearch(_ context.Context) bool { return m.supportsTextSearch }

func testKeys() KeySpace {
	return search.New(nil, zap.NewNop(), search.WithKeyPrefix(testPrefix))
}

func testRecords() []dcat.Record {
	return []dcat.Record{
		{
			ID: "codegen-7b", Name: "CodeGen 7B", Provider: "Salesforce", ModelType: "llm",
			Domain: "code", Capabilities: []string{"code generation"},
			Performance: dcat.Performance{QualityIndex: 55, TokensPerSecond: 80},
		},
		{ID: "whisper", Name: "Whisper", Provider: "OpenAI", ModelType: "speech", Domain: "audio"},
	}
}
