package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

type upsertCall struct {
	collection string
	records    []dcat.Record
	vectors    [][]float32
}

// mockWriter implements Writer for tests.
type mockWriter struct {
	ensureFn func(ctx context.Context, collection string, dim int, recreate bool) (bool, error)
	upsertFn func(ctx context.Context, collection string, records []dcat.Record, vectors [][]float32) error

	dims    []int
	upserts []upsertCall
}

func (m *mockWriter) EnsureIndex(ctx context.Context, collection string, dim int, recreate bool) (bool, error) {
	m.dims = append(m.dims, dim)
	if m.ensureFn != nil {
		return m.ensureFn(ctx, collection, dim, recreate)
	}
	return true, nil
}

func (m *mockWriter) Upsert(ctx context.Context, collection string, records []dcat.Record, vectors [][]float32) error {
	m.upserts = append(m.upserts, upsertCall{collection: collection, records: records, vectors: vectors})
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, records, vectors)
	}
	return nil
}

// mockEmbedder returns {len(text), 1} and fails on texts containing "fail".
type mockEmbedder struct {
	texts []string
	dims  func(text string) int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if strings.Contains(text, "fail") {
		return domain.EmbeddingResult{}, errors.New("provider down")
	}
	vec := []float32{float32(len(text)), 1}
	if m.dims != nil {
		vec = make([]float32, m.dims(text))
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 2}, nil
}

const sampleCatalog = `
collections:
  - name: model_descriptions
    models:
      - id: codegen-7b
        name: CodeGen 7B
        provider: Salesforce
        model_type: llm
        domain: code
        description: Program synthesis model
        capabilities: [code generation, code completion]
        performance:
          quality_index: 55
          tokens_per_second: 80
      - id: whisper
        name: Whisper
        provider: OpenAI
        model_type: speech
      - id: ""
        name: Nameless
      - id: whisper
        name: Whisper again
  - name: model_metadata
    models:
      - id: chat-13b
        name: Chat 13B
`
