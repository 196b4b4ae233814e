// Package badger implements the key-value cache contract on an embedded
// BadgerDB, for deployments without Redis.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/db"
)

// Cache is a TTL key-value cache backed by BadgerDB.
type Cache struct {
	db *badger.DB
}

// loggerAdapter routes badger logs through zap.
type loggerAdapter struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*loggerAdapter)(nil)

func (l *loggerAdapter) Errorf(msg string, items ...any)   { l.logger.Errorf(msg, items...) }
func (l *loggerAdapter) Warningf(msg string, items ...any) { l.logger.Warnf(msg, items...) }
func (l *loggerAdapter) Infof(msg string, items ...any)    { l.logger.Debugf(msg, items...) }
func (l *loggerAdapter) Debugf(msg string, items ...any)   { l.logger.Debugf(msg, items...) }

// Open opens a cache at dir, creating it when missing. inMemory ignores dir
// and keeps everything in RAM.
func Open(dir string, inMemory bool, logger *zap.Logger) (*Cache, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if dir == "" {
			return nil, fmt.Errorf("cache dir is required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &loggerAdapter{logger: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Cache{db: bdb}, nil
}

// Get returns the value at key or db.ErrKeyNotFound.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// SetWithTTL stores value at key. A non-positive ttl never expires.
func (c *Cache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping fails once the database is closed.
func (c *Cache) Ping(_ context.Context) error {
	if c.db.IsClosed() {
		return &db.Error{Op: db.OpGet, Err: errors.New("badger closed")}
	}
	return nil
}

// Close flushes and closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
