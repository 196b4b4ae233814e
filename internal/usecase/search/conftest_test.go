package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/rerank"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// --- Mocks ---

type knnCallArgs struct {
	collection string
	filters    filter.Expression
	k          int
	ef         int
	st         result.SearchType
}

type mockRepo struct {
	mu        sync.Mutex
	knnFn     func(coll string, vec []float32, f filter.Expression, st result.SearchType) ([]result.Result, error)
	textFn    func(coll string, terms []string) ([]result.Result, error)
	textOK    bool
	knnCalls  []knnCallArgs
	textCalls int
}

func (m *mockRepo) SearchKNN(
	_ context.Context, collection string,
	vector []float32, filters filter.Expression, topK, efRuntime int,
	_ bool, st result.SearchType,
) ([]result.Result, error) {
	m.mu.Lock()
	m.knnCalls = append(m.knnCalls, knnCallArgs{collection, filters, topK, efRuntime, st})
	m.mu.Unlock()
	if m.knnFn == nil {
		return nil, nil
	}
	return m.knnFn(collection, vector, filters, st)
}

func (m *mockRepo) SearchText(
	_ context.Context, collection string,
	terms []string, _ filter.Expression, _ int,
) ([]result.Result, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()
	if m.textFn == nil {
		return nil, nil
	}
	return m.textFn(collection, terms)
}

func (m *mockRepo) SupportsTextSearch(_ context.Context) bool { return m.textOK }

func (m *mockRepo) knnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.knnCalls)
}

// mockProcessor builds a minimal processed query: lower-cased text split
// on spaces, with optional extras applied by fn.
type mockProcessor struct {
	fn func(pq *dq.Processed)
}

func (m *mockProcessor) Process(_ context.Context, q string, qc dq.Context) (*dq.Processed, error) {
	norm := strings.ToLower(strings.TrimSpace(q))
	pq := &dq.Processed{
		Query:      q,
		Normalized: norm,
		Context:    qc,
		Tokens:     dq.Tokens{Normalized: strings.Fields(norm), Filtered: strings.Fields(norm)},
		Intent:     dq.Intent{Primary: dq.IntentScore{Intent: dq.IntentSearch, Confidence: 0.5}},
		Enrichment: dq.Enrichment{Domain: "general"},
	}
	if m.fn != nil {
		m.fn(pq)
	}
	return pq, nil
}

type mockEmbedder struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}, TotalTokens: 3}, nil
}

type mockReranker struct {
	fn         func(candidates []rerank.Candidate) ([]rerank.Ranked, error)
	lastCtx    rerank.Context
	lastQuery  string
	candidates []rerank.Candidate
}

func (m *mockReranker) Rank(
	_ context.Context, query string, candidates []rerank.Candidate, rc rerank.Context,
) ([]rerank.Ranked, error) {
	m.lastQuery, m.lastCtx, m.candidates = query, rc, candidates
	return m.fn(candidates)
}

var errBackend = errors.New("backend unavailable")

// --- Fixtures ---

var catalogFixture = map[string]catalog.Record{
	"codegen-7b": {
		ID: "codegen-7b", Name: "CodeGen 7B", Provider: "Salesforce", ModelType: "llm", Domain: "code",
		Description:  "Autoregressive model for program synthesis",
		Capabilities: []string{"Code Generation", "Code Completion"},
		Tags:         []string{"open-source"},
	},
	"chat-13b": {
		ID: "chat-13b", Name: "Chat 13B", Provider: "Meta", ModelType: "llm", Domain: "general",
		Description:  "Dialogue tuned assistant",
		Capabilities: []string{"Chat"},
	},
	"whisper": {
		ID: "whisper", Name: "Whisper Large", Provider: "OpenAI", ModelType: "audio", Domain: "audio",
		Description:  "Speech recognition",
		Capabilities: []string{"Transcription"},
	},
}

func hit(id string, score float64, coll string, st result.SearchType) result.Result {
	rec, ok := catalogFixture[id]
	if !ok {
		rec = catalog.Record{ID: id, Name: "Model " + id, Provider: "P-" + id, ModelType: "t-" + id, Domain: "general"}
	}
	return result.New(id, score, rec, coll, st, []float32{1, 0})
}

// lookalike is a record sharing every feature with the other lookalikes.
func lookalike(id string, score float64) result.Result {
	rec := catalog.Record{
		ID: id, Name: "Llama Chat", Provider: "Meta", ModelType: "llm", Domain: "general",
		Capabilities: []string{"chat"}, Tags: []string{"open"},
	}
	return result.New(id, score, rec, "model_descriptions", result.TypeSemantic, nil)
}

func newTestService(repo *mockRepo, proc *mockProcessor, emb *mockEmbedder, opts ...Option) *Service {
	var n int
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return "req-" + strings.Repeat("x", n)
	})}, opts...)
	return New(repo, proc, emb, zap.NewNop(), opts...)
}

func ptr[T any](v T) *T { return &v }
