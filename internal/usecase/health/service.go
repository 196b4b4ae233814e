// Package health aggregates readiness of the retrieval collaborators.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that an optional component failed. Search keeps
	// answering with reduced quality.
	Degraded Status = "degraded"
	// Unhealthy indicates that the vector store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentStore     = "store"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

const defaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     Pinger
	cache     Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache adds the shared cache backend to the checks.
func WithCache(p Pinger) Option {
	return func(s *Service) { s.cache = p }
}

// WithEmbedding adds the embedding provider to the checks.
func WithEmbedding(e EmbeddingChecker) Option {
	return func(s *Service) { s.embedding = e }
}

// WithTimeout bounds each individual check.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service.
func New(store Pinger, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, timeout: defaultCheckTimeout, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs all configured checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]func(context.Context) error{
		ComponentStore: s.store.Ping,
	}
	if s.cache != nil {
		checks[ComponentCache] = s.cache.Ping
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.embedding.HealthCheck
	}

	var mu sync.Mutex
	results := make(map[string]CheckResult, len(checks))

	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := check(cctx); err != nil {
				res = CheckError
				s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: aggregate(results), Checks: results}
}

func aggregate(results map[string]CheckResult) Status {
	if results[ComponentStore] == CheckError {
		return Unhealthy
	}
	for _, v := range results {
		if v == CheckError {
			return Degraded
		}
	}
	return Healthy
}
