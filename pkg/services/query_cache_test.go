package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-price-api/pkg/models"
)

func TestCacheExpires(t *testing.T) {
	c := NewCache[string, int](20*time.Millisecond, 0)
	defer c.Stop()

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "掃除されるまでは保持")

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheCleanupRemovesExpired(t *testing.T) {
	c := NewCache[string, int](10*time.Millisecond, 5*time.Millisecond)
	defer c.Stop()

	c.Set("a", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
	c.Stop() // 2回呼んでも安全
}

func TestCacheKey(t *testing.T) {
	f := testFilter()
	k1 := CacheKey(f, 1)
	assert.Equal(t, k1, CacheKey(f.Clone(), 1))
	assert.NotEqual(t, k1, CacheKey(f, 2), "データセットの世代が変われば別キー")

	g := f.Clone()
	g.Granularity = models.GranularityDaily
	assert.NotEqual(t, k1, CacheKey(g, 1))
}

func TestQueryCacheMemoryTier(t *testing.T) {
	q := NewQueryCache(time.Minute, nil)
	defer q.Close()
	ctx := context.Background()

	_, ok := q.Get(ctx, "k")
	assert.False(t, ok)

	q.Set(ctx, "k", &CachedQuery{Narrative: "n"})
	got, ok := q.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "n", got.Narrative)

	q.Purge()
	_, ok = q.Get(ctx, "k")
	assert.False(t, ok)
}

func TestQueryCacheDisabled(t *testing.T) {
	q := NewQueryCache(0, nil)
	q.Set(context.Background(), "k", &CachedQuery{})
	_, ok := q.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.False(t, q.Enabled())
	assert.NoError(t, q.Close())

	var nilCache *QueryCache
	_, ok = nilCache.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Nil(t, NewRedisClient("", "", 0))
}

// Redisが使える環境でのみ実行（REDIS_ADDR）
func TestQueryCacheRedisTier(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, client.Ping(ctx).Err())

	writer := NewQueryCache(time.Minute, client)
	key := CacheKey(testFilter(), uint64(time.Now().UnixNano()))
	writer.Set(ctx, key, &CachedQuery{
		Filter: testFilter(),
		Series: pricePoints(1, 2),
	})

	// 別インスタンス（メモリ段は空）からRedis経由で取得できる
	reader := NewQueryCache(time.Minute, client)
	got, ok := reader.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "감자", got.Filter.ItemName)
	assert.Len(t, got.Series, 2)

	require.NoError(t, client.Del(ctx, redisKeyPrefix+key).Err())
	writer.memory.Stop()
	require.NoError(t, reader.Close())
}
