package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/config"
	"github.com/kailas-cloud/modeldex/internal/db"
	dbMilvus "github.com/kailas-cloud/modeldex/internal/db/milvus"
	dbRedis "github.com/kailas-cloud/modeldex/internal/db/redis"
	"github.com/kailas-cloud/modeldex/internal/repository/cache/badger"
	"github.com/kailas-cloud/modeldex/internal/repository/memory"
)

// backend is the opened catalog store. writable is nil for read-only
// drivers (milvus).
type backend struct {
	pinger   db.Pinger
	searcher db.Searcher
	writable db.Store
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := s.WaitForReady(ctx, timeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		return &backend{pinger: s, searcher: s, writable: s, close: s.Close}, nil

	case config.DriverMilvus:
		m := cfg.Database.Milvus
		s, err := dbMilvus.NewStore(ctx, dbMilvus.Config{
			Address:          m.Address,
			Username:         m.Username,
			Password:         m.Password,
			HealthCollection: m.HealthCollection,
			DefaultEF:        cfg.Search.ApproximateEF,
		})
		if err != nil {
			return nil, fmt.Errorf("create milvus store: %w", err)
		}
		logger.Info("Connected to milvus", zap.String("address", m.Address))
		closeFn := func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close milvus client", zap.Error(err))
			}
		}
		return &backend{pinger: s, searcher: s, close: closeFn}, nil

	case config.DriverMemory:
		s := memory.New()
		return &backend{pinger: s, searcher: s, writable: s, close: s.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// kvCache is the opened response/embedding cache backend.
type kvCache struct {
	kv     db.KVStore
	pinger db.Pinger
	close  func()
}

// openCache returns nil when caching is disabled. The redis cache reuses
// the catalog connection when the catalog lives in redis too.
func openCache(cfg *config.Config, b *backend, logger *zap.Logger) (*kvCache, error) {
	switch cfg.Cache.Driver {
	case config.CacheNone:
		return nil, nil

	case config.CacheRedis:
		if cfg.Database.Driver == config.DriverRedis && b.writable != nil {
			return &kvCache{kv: b.writable, pinger: b.writable, close: func() {}}, nil
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		return &kvCache{kv: s, pinger: s, close: s.Close}, nil

	case config.CacheBadger:
		c, err := badger.Open(cfg.Cache.BadgerPath, cfg.Cache.InMemory, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		closeFn := func() {
			if err := c.Close(); err != nil {
				logger.Warn("Failed to close badger cache", zap.Error(err))
			}
		}
		return &kvCache{kv: c, pinger: c, close: closeFn}, nil

	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
