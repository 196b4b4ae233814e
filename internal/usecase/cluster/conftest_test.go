package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

var errEmbed = errors.New("embedding provider down")

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	fn    func(text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	v, err := m.fn(text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: 1}, nil
}

// countingPool wraps an ants pool and counts submitted tasks.
type countingPool struct {
	inner     *ants.Pool
	submitted atomic.Int32
}

func newCountingPool(t *testing.T) *countingPool {
	t.Helper()
	p, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return &countingPool{inner: p}
}

func (p *countingPool) Submit(task func()) error {
	p.submitted.Add(1)
	return p.inner.Submit(task)
}

func model(id, provider string) catalog.Record {
	return catalog.Record{ID: id, Name: "Model " + id, Provider: provider, ModelType: "llm", Domain: "general"}
}

func res(rec catalog.Record, score float64, vec ...float32) result.Result {
	var v []float32
	if len(vec) > 0 {
		v = vec
	}
	return result.New(rec.ID, score, rec, "model_descriptions", result.TypeSemantic, v)
}

// blobs returns n results near (1,0) followed by n results near (0,1).
func blobs(n int) []result.Result {
	var out []result.Result
	for i := range n {
		out = append(out, res(model(fmt.Sprintf("a%d", i), "Meta"), 0.9, 1, float32(i)*0.01))
	}
	for i := range n {
		out = append(out, res(model(fmt.Sprintf("b%d", i), "OpenAI"), 0.8, float32(i)*0.01, 1))
	}
	return out
}

var semanticOnly = []dc.Channel{dc.ChannelSemantic}

func newTestService(opts ...Option) *Service {
	opts = append([]Option{WithIDGenerator(func() string { return "run-1" })}, opts...)
	return New(nil, zap.NewNop(), opts...)
}

// requirePartition checks that every index in [0,n) appears in exactly one cluster.
func requirePartition(t *testing.T, resp *dc.Response, n int) {
	t.Helper()
	seen := make(map[int]int)
	total := 0
	for _, c := range resp.Clusters {
		require.Equal(t, len(c.Members), c.Size)
		total += c.Size
		for _, m := range c.Members {
			seen[m]++
		}
	}
	require.Equal(t, n, total)
	require.Len(t, seen, n)
	for i := range n {
		require.Equal(t, 1, seen[i], "index %d", i)
	}
}

func memberSets(resp *dc.Response) [][]int {
	out := make([][]int, 0, len(resp.Clusters))
	for _, c := range resp.Clusters {
		out = append(out, c.Members)
	}
	return out
}

func catalogPerformance(quality, tps, price float64) catalog.Performance {
	return catalog.Performance{QualityIndex: quality, TokensPerSecond: tps, PricePerMTok: price}
}
