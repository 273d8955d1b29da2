// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/deltagraph/deltagraph/internal/graph"
)

// cacheVersion is part of every key; bump it when extraction changes.
const cacheVersion = "v1"

type (
	// Cache stores transform results keyed by file kind and content hash.
	Cache interface {
		Get(key string) (graph.TransformResult[Output], bool, error)
		Put(key string, result graph.TransformResult[Output]) error
		Close() error
	}

	// BadgerCache is a Cache backed by a badger database on disk, or in memory
	// when no directory is given.
	BadgerCache struct {
		db *badger.DB
	}

	// NopCache never hits.
	NopCache struct{}

	badgerLogger struct {
		l *log.Logger
	}
)

// OpenBadgerCache opens (or creates) a cache in dir. An empty dir keeps the
// cache in memory.
func OpenBadgerCache(dir string, logger *log.Logger) (*BadgerCache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{l: logger.WithPrefix("cache")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open transform cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(key string) (graph.TransformResult[Output], bool, error) {
	var result graph.TransformResult[Output]
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &result)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	return result, true, nil
}

func (c *BadgerCache) Put(key string, result graph.TransformResult[Output]) error {
	data, err := msgpack.Marshal(&result)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Clear drops every entry.
func (c *BadgerCache) Clear() error {
	return c.db.DropAll()
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}

func (NopCache) Get(string) (graph.TransformResult[Output], bool, error) {
	return graph.TransformResult[Output]{}, false, nil
}

func (NopCache) Put(string, graph.TransformResult[Output]) error { return nil }

func (NopCache) Close() error { return nil }

func cacheKey(kind Kind, hash uint64) string {
	return fmt.Sprintf("%s/%s/%016x", cacheVersion, kind, hash)
}

func (b *badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(format, args...) }
func (b *badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(format, args...) }
func (b *badgerLogger) Infof(format string, args ...any)    { b.l.Debugf(format, args...) }
func (b *badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(format, args...) }
