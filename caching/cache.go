package caching

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/metrics"
)

const (
	tier       = "disk"
	keyPrefix  = "resp:"
	gcInterval = 5 * time.Minute
)

// Cache is the persistent response tier. Entries survive restarts and expire
// through badger's per-entry TTL.
type Cache struct {
	db       *badger.DB
	inMemory bool
	log      zerolog.Logger

	stopGC    chan struct{}
	closeOnce sync.Once
	gcDone    sync.WaitGroup
}

// Open opens (or creates) the badger store in dir. An empty dir keeps the
// store in memory.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	inMemory := dir == ""
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logging.With("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store %q: %w", dir, err)
	}

	c := &Cache{
		db:       db,
		inMemory: inMemory,
		log:      logging.With("disk-cache"),
		stopGC:   make(chan struct{}),
	}

	if !inMemory {
		c.gcDone.Add(1)
		go c.startGC(gcInterval)
	}

	c.log.Info().Str("dir", dir).Bool("in_memory", inMemory).Int("entries", c.Size()).Msg("Loaded response cache")
	return c, nil
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		metrics.CacheMisses.WithLabelValues(tier).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(tier).Inc()
	return value, true
}

// Set stores a value in the cache with a TTL
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	entry := badger.NewEntry([]byte(keyPrefix+key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	c.write(key, entry)
}

// SetPermanent stores a value in the cache that never expires
func (c *Cache) SetPermanent(key string, value []byte) {
	c.write(key, badger.NewEntry([]byte(keyPrefix+key), value))
}

func (c *Cache) write(key string, entry *badger.Entry) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Delete removes a value from the cache
func (c *Cache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		c.log.Warn().Err(err).Msg("Cache clear failed")
	}
}

// Size returns the number of live entries
func (c *Cache) Size() int {
	count := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Flush syncs pending writes to disk
func (c *Cache) Flush() error {
	if c.inMemory {
		return nil
	}
	if err := c.db.Sync(); err != nil {
		return fmt.Errorf("sync cache store: %w", err)
	}
	return nil
}

// Close stops value log GC and closes the store
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopGC)
		c.gcDone.Wait()
		err = c.db.Close()
	})
	return err
}

func (c *Cache) startGC(interval time.Duration) {
	defer c.gcDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runGC()
		case <-c.stopGC:
			return
		}
	}
}

// runGC rewrites value log files until badger reports nothing left to reclaim
func (c *Cache) runGC() {
	rewrites := 0
	for {
		err := c.db.RunValueLogGC(0.5)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				c.log.Warn().Err(err).Msg("Value log GC failed")
			}
			break
		}
		rewrites++
	}
	if rewrites > 0 {
		c.log.Debug().Int("rewrites", rewrites).Msg("Value log GC reclaimed space")
	}
}

// badgerLogger routes badger's internal logging through zerolog
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
