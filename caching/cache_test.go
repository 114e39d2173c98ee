package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrescalazans/popularmovies/types"
)

var _ types.Cache = (*Cache)(nil)

func openMemory(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheSetGetDelete(t *testing.T) {
	c := openMemory(t)

	_, ok := c.Get("movie/popular")
	assert.False(t, ok)

	c.Set("movie/popular", []byte(`{"page":1}`), time.Hour)
	v, ok := c.Get("movie/popular")
	require.True(t, ok)
	assert.Equal(t, `{"page":1}`, string(v))
	assert.Equal(t, 1, c.Size())

	c.Delete("movie/popular")
	_, ok = c.Get("movie/popular")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestCacheTTL(t *testing.T) {
	c := openMemory(t)

	// badger TTL has one second granularity
	c.Set("short", []byte("a"), time.Second)
	c.SetPermanent("forever", []byte("b"))

	time.Sleep(2100 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	v, ok := c.Get("forever")
	require.True(t, ok)
	assert.Equal(t, "b", string(v))
	assert.Equal(t, 1, c.Size())
}

func TestCacheClear(t *testing.T) {
	c := openMemory(t)
	c.Set("a", []byte("1"), time.Hour)
	c.SetPermanent("b", []byte("2"))

	c.Clear()
	assert.Zero(t, c.Size())
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	c.Set("movie/top_rated", []byte("cached"), time.Hour)
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get("movie/top_rated")
	require.True(t, ok)
	assert.Equal(t, "cached", string(v))
}
