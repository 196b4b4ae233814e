// Package app wires the retrieval services from configuration. It is the
// composition root shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/config"
	"github.com/kailas-cloud/modeldex/internal/db"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/modeldex/internal/repository/catalog"
	"github.com/kailas-cloud/modeldex/internal/repository/respcache"
	searchrepo "github.com/kailas-cloud/modeldex/internal/repository/search"
	openaiTransport "github.com/kailas-cloud/modeldex/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/modeldex/internal/usecase/catalog"
	clusteruc "github.com/kailas-cloud/modeldex/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/modeldex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/modeldex/internal/usecase/query"
	searchuc "github.com/kailas-cloud/modeldex/internal/usecase/search"
)

// ErrReadOnly is returned by Seed when the catalog store cannot be written.
var ErrReadOnly = errors.New("catalog store is read-only")

// App holds the wired services.
type App struct {
	Engine *Engine
	Health *healthuc.Service

	seeder  *cataloguc.Seeder
	logger  *zap.Logger
	closers []func()
}

// New builds every component named by cfg. The memory driver is seeded
// from cfg.Database.CatalogFile when one is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	logger := a.logger

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, b.close)

	cache, err := openCache(cfg, b, logger)
	if err != nil {
		return err
	}
	var kv db.KVStore
	if cache != nil {
		kv = cache.kv
		a.closers = append(a.closers, cache.close)
	}

	emb, err := buildEmbedders(cfg, kv, logger)
	if err != nil {
		return err
	}

	repoOpts := []searchrepo.Option{}
	if cfg.Database.Driver == config.DriverMilvus {
		repoOpts = append(repoOpts, searchrepo.WithReturnFields(dcat.StoredFields...))
	} else {
		repoOpts = append(repoOpts, searchrepo.WithKeyPrefix(cfg.Storage.KeyPrefix))
	}
	searchRepo := searchrepo.New(b.searcher, logger, repoOpts...)

	queryOpts := []queryuc.Option{}
	if kv != nil {
		queryOpts = append(queryOpts,
			queryuc.WithCache(kv, time.Duration(cfg.Search.QueryCacheTTLSec)*time.Second))
	}
	pipeline := queryuc.New(logger, queryOpts...)

	searchSvc := searchuc.New(searchRepo, pipeline, emb.query, logger, a.searchOptions(cfg, kv)...)

	pool, err := ants.NewPool(cfg.Clustering.Workers)
	if err != nil {
		return fmt.Errorf("create cluster pool: %w", err)
	}
	a.closers = append(a.closers, pool.Release)

	clusterSvc := clusteruc.New(emb.document, logger,
		clusteruc.WithPool(pool),
		clusteruc.WithConfig(clusteruc.Config{
			PoolThreshold:    cfg.Clustering.PoolThreshold,
			MaxFanout:        cfg.Search.MaxFanout,
			EmbeddingTimeout: time.Duration(cfg.Embedding.TimeoutMs) * time.Millisecond,
		}),
		clusteruc.WithCache(respcache.New[*dc.Response](
			kv, time.Duration(cfg.Cache.TTLSec)*time.Second,
			cfg.Storage.KeyPrefix+"cluster:", nil, logger,
		)),
	)

	a.Engine = NewEngine(searchSvc, clusterSvc, pipeline, Defaults{
		Collections:         cfg.Search.Collections,
		Limit:               cfg.Search.DefaultLimit,
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		HybridWeight:        cfg.Search.HybridWeight,
		MaxClusters:         cfg.Clustering.MaxClusters,
		Seed:                cfg.Clustering.Seed,
	})

	healthOpts := []healthuc.Option{healthuc.WithEmbedding(emb.base)}
	if cache != nil {
		healthOpts = append(healthOpts, healthuc.WithCache(cache.pinger))
	}
	a.Health = healthuc.New(b.pinger, logger, healthOpts...)

	if b.writable != nil {
		writer := catalogrepo.New(b.writable, searchRepo).WithHNSW(catalogrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		a.seeder = cataloguc.NewSeeder(writer, emb.document, logger)
	}

	if cfg.Database.Driver == config.DriverMemory && cfg.Database.CatalogFile != "" {
		f, err := cataloguc.LoadFile(cfg.Database.CatalogFile)
		if err != nil {
			return err
		}
		if _, err := a.Seed(ctx, f, cataloguc.SeedOptions{}); err != nil {
			return fmt.Errorf("seed memory catalog: %w", err)
		}
	}

	return nil
}

func (a *App) searchOptions(cfg *config.Config, kv db.KVStore) []searchuc.Option {
	opts := []searchuc.Option{
		searchuc.WithConfig(searchuc.Config{
			MaxFanout:        cfg.Search.MaxFanout,
			EmbeddingTimeout: time.Duration(cfg.Embedding.TimeoutMs) * time.Millisecond,
			StoreTimeout:     time.Duration(cfg.Search.StoreTimeoutMs) * time.Millisecond,
			RerankerTimeout:  time.Duration(cfg.Reranker.TimeoutMs) * time.Millisecond,
			ApproximateEF:    cfg.Search.ApproximateEF,
		}),
		searchuc.WithCache(respcache.New[*result.Response](
			kv, time.Duration(cfg.Cache.TTLSec)*time.Second,
			cfg.Storage.KeyPrefix+"search:", metrics.SearchCacheTotal, a.logger,
		)),
	}
	if rc := cfg.Reranker; rc.Enabled {
		prov := cfg.Embedding.Providers[rc.Provider]
		opts = append(opts, searchuc.WithReranker(openaiTransport.NewReranker(&openaiTransport.RerankerConfig{
			APIKey:  prov.APIKey,
			BaseURL: prov.BaseURL,
			Model:   rc.Model,
			RPS:     rc.RPS,
			Burst:   rc.Burst,
			Logger:  a.logger,
		})))
	}
	return opts
}

// Seed indexes a catalog file. It fails with ErrReadOnly on read-only drivers.
func (a *App) Seed(ctx context.Context, f *cataloguc.File, opts cataloguc.SeedOptions) (cataloguc.Report, error) {
	if a.seeder == nil {
		return cataloguc.Report{}, ErrReadOnly
	}
	return a.seeder.Seed(ctx, f, opts)
}

// Close releases connections and worker pools in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
