package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/modeldex/internal/usecase/health"
)

type mockSearcher struct {
	fn     func(ctx context.Context, q string, p request.Params) (*result.Response, error)
	calls  int
	query  string
	params request.Params
}

func (m *mockSearcher) Search(ctx context.Context, q string, p request.Params) (*result.Response, error) {
	m.calls++
	m.query, m.params = q, p
	if m.fn != nil {
		return m.fn(ctx, q, p)
	}
	return &result.Response{Results: testResults(), Total: 2, Limit: 20}, nil
}

type mockClusterer struct {
	fn      func(results []result.Result, p dc.Params) (*dc.Response, error)
	results []result.Result
	params  dc.Params
}

func (m *mockClusterer) Cluster(_ context.Context, results []result.Result, p dc.Params) (*dc.Response, error) {
	m.results, m.params = results, p
	if m.fn != nil {
		return m.fn(results, p)
	}
	return &dc.Response{
		RunID:       "run-1",
		Algorithm:   dc.KMeans,
		K:           1,
		NumClusters: 1,
		Clusters: []dc.Cluster{{
			ID: 0, Members: []int{0, 1}, Size: 2,
			Label: dc.Label{Text: "Acme Models (2)", Confidence: 1, Strategy: dc.LabelRepresentative},
		}},
	}, nil
}

type mockProcessor struct {
	err   error
	query string
	qc    dq.Context
}

func (m *mockProcessor) Process(_ context.Context, q string, qc dq.Context) (*dq.Processed, error) {
	m.query, m.qc = q, qc
	if m.err != nil {
		return nil, m.err
	}
	return &dq.Processed{Query: q, Normalized: q, Context: qc, Confidence: 0.8}, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type testServer struct {
	search  *mockSearcher
	cluster *mockClusterer
	process *mockProcessor
	health  *mockHealth
	handler http.Handler
}

func newTestServer(apiKeys ...string) *testServer {
	ts := &testServer{
		search:  &mockSearcher{},
		cluster: &mockClusterer{},
		process: &mockProcessor{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentStore: healthuc.CheckOK},
		}},
	}
	srv := NewServer(ts.search, ts.cluster, ts.process, ts.health, zap.NewNop())
	ts.handler = srv.Handler(apiKeys)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func testResults() []result.Result {
	return []result.Result{
		result.New("acme/coder", 0.9, catalog.Record{
			ID: "acme/coder", Name: "Coder", Provider: "Acme", ModelType: "llm", Domain: "code",
		}, "model_descriptions", result.TypeSemantic, nil),
		result.New("acme/chat", 0.7, catalog.Record{
			ID: "acme/chat", Name: "Chat", Provider: "Acme", ModelType: "llm", Domain: "general",
		}, "model_descriptions", result.TypeSemantic, nil),
	}
}
