package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"Romaly/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func newListingCache(t *testing.T) (*ListingCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewListingCache(client, time.Minute), mr
}

// fillWith 返回一个把 v 写入 dst 的 fill，并统计调用次数
func fillWith(dst *page, v page, calls *int) func() error {
	return func() error {
		*calls++
		*dst = v
		return nil
	}
}

func TestListingCacheRoundTrip(t *testing.T) {
	c, _ := newListingCache(t)
	ctx := context.Background()
	want := page{Items: []string{"a", "b"}, Total: 2}

	calls := 0
	var got page
	require.NoError(t, c.Fetch(ctx, "tracks:1:20", &got, fillWith(&got, want, &calls)))
	assert.Equal(t, want, got)

	var again page
	require.NoError(t, c.Fetch(ctx, "tracks:1:20", &again, fillWith(&again, page{}, &calls)))
	assert.Equal(t, want, again)
	assert.Equal(t, 1, calls)
}

func TestListingCacheInvalidate(t *testing.T) {
	c, _ := newListingCache(t)
	ctx := context.Background()
	calls := 0

	var got page
	require.NoError(t, c.Fetch(ctx, "collections:1:20", &got, fillWith(&got, page{Total: 1}, &calls)))
	c.Invalidate(ctx)

	got = page{}
	require.NoError(t, c.Fetch(ctx, "collections:1:20", &got, fillWith(&got, page{Total: 3}, &calls)))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, calls)
}

// 查询过程中发生写入时，旧结果不能顶替新一代的缓存
func TestListingCacheWriteDuringFill(t *testing.T) {
	c, _ := newListingCache(t)
	ctx := context.Background()

	var got page
	err := c.Fetch(ctx, "tracks:approved:1:20", &got, func() error {
		got = page{Items: []string{"rejected-soon"}, Total: 1}
		c.Invalidate(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rejected-soon"}, got.Items)

	calls := 0
	var fresh page
	require.NoError(t, c.Fetch(ctx, "tracks:approved:1:20", &fresh, fillWith(&fresh, page{Items: []string{}}, &calls)))
	assert.Equal(t, 1, calls)
	assert.Empty(t, fresh.Items)
}

func TestListingCacheFillError(t *testing.T) {
	c, mr := newListingCache(t)
	ctx := context.Background()
	boom := errors.New("db down")

	var got page
	err := c.Fetch(ctx, "k", &got, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("romaly:listing:0:k"))
}

func TestListingCacheTTL(t *testing.T) {
	c, mr := newListingCache(t)
	ctx := context.Background()
	calls := 0

	var got page
	require.NoError(t, c.Fetch(ctx, "k", &got, fillWith(&got, page{Total: 1}, &calls)))
	mr.FastForward(2 * time.Minute)

	require.NoError(t, c.Fetch(ctx, "k", &got, fillWith(&got, page{Total: 2}, &calls)))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, got.Total)
}

func TestListingCacheCorruptEntry(t *testing.T) {
	c, mr := newListingCache(t)
	require.NoError(t, mr.Set("romaly:listing:0:k", "{not json"))

	calls := 0
	var got page
	require.NoError(t, c.Fetch(context.Background(), "k", &got, fillWith(&got, page{Total: 5}, &calls)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 5, got.Total)
}

func TestListingCacheRedisDown(t *testing.T) {
	c, mr := newListingCache(t)
	mr.Close()

	ctx := context.Background()
	calls := 0
	var got page
	require.NoError(t, c.Fetch(ctx, "k", &got, fillWith(&got, page{Total: 1}, &calls)))
	assert.Equal(t, 1, calls)
	assert.NotPanics(t, func() { c.Invalidate(ctx) })
}

func TestNop(t *testing.T) {
	var c PageCache = Nop{}
	calls := 0
	var got page
	for i := 0; i < 2; i++ {
		require.NoError(t, c.Fetch(context.Background(), "k", &got, fillWith(&got, page{Total: 1}, &calls)))
	}
	assert.Equal(t, 2, calls)
}

func TestProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), &config.Config{RedisHost: mr.Host(), RedisPort: mr.Port()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, Probe(context.Background(), client))
	assert.False(t, mr.Exists(probeKey))
	assert.Error(t, Probe(context.Background(), nil))
}
