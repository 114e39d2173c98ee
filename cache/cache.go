package cache

import (
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/torrescalazans/popularmovies/metrics"
)

const tier = "memory"

// Cache is the in-memory response tier keyed by request URL
type Cache struct {
	items *gocache.Cache
}

// NewCache creates a new cache instance with periodic cleanup of expired entries
func NewCache() *Cache {
	return NewCacheWithCleanup(5 * time.Minute)
}

// NewCacheWithCleanup creates a cache whose janitor runs at the given interval
func NewCacheWithCleanup(interval time.Duration) *Cache {
	return &Cache{
		items: gocache.New(gocache.NoExpiration, interval),
	}
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(tier).Inc()
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		metrics.CacheMisses.WithLabelValues(tier).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(tier).Inc()
	return b, true
}

// Set stores a value in the cache with a TTL
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, value, ttl)
}

// SetPermanent stores a value in the cache that never expires
func (c *Cache) SetPermanent(key string, value []byte) {
	c.items.Set(key, value, gocache.NoExpiration)
}

// Delete removes a value from the cache
func (c *Cache) Delete(key string) {
	c.items.Delete(key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.items.Flush()
}

// Size returns the number of items in the cache, expired ones included until cleanup
func (c *Cache) Size() int {
	return c.items.ItemCount()
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]interface{} {
	all := c.items.Items() // unexpired only
	permanent := 0
	for _, item := range all {
		if item.Expiration == 0 {
			permanent++
		}
	}
	total := c.items.ItemCount()

	return map[string]interface{}{
		"total_entries":     total,
		"permanent_entries": permanent,
		"expired_entries":   total - len(all),
		"active_entries":    len(all),
	}
}

// Key derives a cache key from a request URL, dropping the api_key parameter
// so credentials never end up in cache storage.
func Key(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Del("api_key")
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "?")
}
