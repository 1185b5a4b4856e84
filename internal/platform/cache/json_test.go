package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID    string `json:"id"`
	Price int64  `json:"price"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestFetchJSONLoadsOnceThenHits(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return product{ID: "p-1", Price: 12900}, nil
	}

	key, err := c.BuildKey(ctx, "products", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "products:p-1:v1", key)

	var first, second product
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, product{ID: "p-1", Price: 12900}, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestFetchJSONLoaderErrorIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("backend down")

	var out product
	err := c.FetchJSON(ctx, "k", &out, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))

	assert.ErrorIs(t, c.FetchJSON(ctx, "k", &out, nil), ErrLoaderRequired)
}

func TestBumpRotatesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "home")
	require.NoError(t, err)
	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)
	after, err := c.BuildKey(ctx, "home")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Equal(t, "home:v2", after)
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	key, err := c.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)

	var out product
	require.NoError(t, c.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return product{ID: "x"}, nil
	}))
	assert.Equal(t, "x", out.ID)

	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	assert.Zero(t, ver)
}
