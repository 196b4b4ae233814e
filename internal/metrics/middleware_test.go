package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMeteredRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Post("/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/v1/cluster", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/v1/models/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr.Code
}

func TestHTTPMiddleware_CountsByRouteAndStatus(t *testing.T) {
	r := newMeteredRouter()
	tests := []struct {
		method, path, route, status string
	}{
		{http.MethodPost, "/v1/search", "/v1/search", "200"},
		{http.MethodPost, "/v1/cluster", "/v1/cluster", "400"},
		{http.MethodGet, "/v1/models/llama-3", "/v1/models/{id}", "204"},
	}

	for _, tc := range tests {
		t.Run(tc.route, func(t *testing.T) {
			counter := httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status)
			before := testutil.ToFloat64(counter)

			serve(r, tc.method, tc.path)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests_total delta = %v, want 1", got)
			}
		})
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestHTTPMiddleware_UnmatchedPathsShareOneSeries(t *testing.T) {
	r := newMeteredRouter()
	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	for _, p := range []string{"/wp-admin", "/.env", "/v1/unknown/deep/path"} {
		if code := serve(r, http.MethodGet, p); code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", p, code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("unmatched 404 delta = %v, want 3", got)
	}
}

func TestHTTPMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	var during float64
	r.Get("/slow", func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(httpInFlight)
	})

	serve(r, http.MethodGet, "/slow")

	if during < 1 {
		t.Errorf("in-flight during request = %v, want >= 1", during)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Errorf("in-flight after request = %v, want 0", got)
	}
}

func TestRegisterRetrievalMetrics_Idempotent(t *testing.T) {
	RegisterRetrievalMetrics()
	RegisterRetrievalMetrics()

	SearchCacheTotal.WithLabelValues("hit").Inc()
	if got := testutil.ToFloat64(SearchCacheTotal.WithLabelValues("hit")); got < 1 {
		t.Errorf("expected search_cache_total{hit} >= 1, got %f", got)
	}
}
