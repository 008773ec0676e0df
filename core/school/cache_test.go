package school

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryCache_Query(t *testing.T) {
	repo := newRepoMock(15)
	svc := NewService(repo)
	clk := clock.NewMock()
	cache := NewDirectoryCache(time.Minute, clk)
	ctx := context.Background()

	first, err := cache.Query(ctx, svc, QueryFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queries)

	// hit
	got, err := cache.Query(ctx, svc, QueryFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, 1, repo.queries)

	// other page, other key
	_, err = cache.Query(ctx, svc, QueryFilter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.queries)

	// other filter, other key
	_, err = cache.Query(ctx, svc, QueryFilter{Search: "kin"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.queries)
	assert.Equal(t, 3, cache.Len())

	// expired
	clk.Add(time.Minute)
	_, err = cache.Query(ctx, svc, QueryFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, repo.queries)
}

func TestDirectoryCache_SamePageKeys(t *testing.T) {
	assert.Equal(t, CacheKey(QueryFilter{}, 0), CacheKey(QueryFilter{}, 1))
	assert.NotEqual(t, CacheKey(QueryFilter{}, 1), CacheKey(QueryFilter{}, 2))
}

func TestDirectoryCache_ErrorsAreNotCached(t *testing.T) {
	repo := newRepoMock(3)
	repo.failDir = true
	svc := NewService(repo)
	cache := NewDirectoryCache(0, clock.NewMock())
	ctx := context.Background()

	_, err := cache.Query(ctx, svc, QueryFilter{}, 1)
	assert.True(t, errors.Is(err, errDBDown))
	assert.Zero(t, cache.Len())

	repo.failDir = false
	dir, err := cache.Query(ctx, svc, QueryFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, dir.Data, 3)
	assert.Equal(t, 1, cache.Len())
}

func TestDirectoryCache_Expiry(t *testing.T) {
	clk := clock.NewMock()
	cache := NewDirectoryCache(0, clk)

	cache.Set("k", Directory{})
	clk.Add(DefaultDirectoryTTL - time.Second)
	_, ok := cache.Get("k")
	assert.True(t, ok)

	clk.Add(time.Second)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Zero(t, cache.Len(), "expired entries are dropped on read")
}

func TestDirectoryCache_SetReclaimsExpired(t *testing.T) {
	clk := clock.NewMock()
	cache := NewDirectoryCache(time.Minute, clk)

	for i := 0; i < 500; i++ {
		cache.Set(CacheKey(QueryFilter{Search: "q" + strconv.Itoa(i)}, 1), Directory{})
	}
	require.Equal(t, 500, cache.Len())

	clk.Add(time.Hour)
	cache.Set("fresh", Directory{})
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("fresh")
	assert.True(t, ok)
}

func TestDirectoryCache_Bounded(t *testing.T) {
	clk := clock.NewMock()
	cache := NewDirectoryCache(time.Hour, clk)

	for i := 0; i <= MaxDirectoryEntries; i++ {
		cache.Set("k-"+strconv.Itoa(i), Directory{})
		clk.Add(time.Millisecond)
	}
	assert.Equal(t, MaxDirectoryEntries, cache.Len())

	_, ok := cache.Get("k-0")
	assert.False(t, ok, "the page closest to expiry is evicted")
	_, ok = cache.Get("k-" + strconv.Itoa(MaxDirectoryEntries))
	assert.True(t, ok)

	// overwriting a cached key never evicts
	cache.Set("k-1", Directory{})
	assert.Equal(t, MaxDirectoryEntries, cache.Len())
	_, ok = cache.Get("k-2")
	assert.True(t, ok)
}

func TestDirectoryCache_Invalidate(t *testing.T) {
	cache := NewDirectoryCache(time.Minute, clock.NewMock())
	cache.Set("a", Directory{})
	cache.Set("b", Directory{})
	require.Equal(t, 2, cache.Len())

	cache.Invalidate()
	assert.Zero(t, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}
