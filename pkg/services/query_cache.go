package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"agri-price-api/pkg/models"
)

// Cache は型安全なTTL付きインメモリキャッシュです。
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*cacheItem[V]
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// NewCache は期限切れの項目を定期的に掃除するキャッシュを生成します。
func NewCache[K comparable, V any](ttl time.Duration, cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiration) {
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem[V]{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

// Len は期限切れを含む保持件数
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge は全項目を削除します。
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	c.items = make(map[K]*cacheItem[V])
	c.mu.Unlock()
}

// Stop は掃除用のgoroutineを停止します。
func (c *Cache[K, V]) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiration) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// CachedQuery はフィルタ確定後の処理結果（系列・要約・説明文）です。
type CachedQuery struct {
	Filter    models.Filter        `json:"filter"`
	Series    []models.SeriesPoint `json:"series"`
	Summary   *models.SummaryStats `json:"summary"`
	Narrative string               `json:"narrative"`
	Warnings  []string             `json:"warnings"`
}

const redisKeyPrefix = "agri:query:"

// QueryCache はメモリ（常時）とRedis（設定時）の2段構成のクエリキャッシュです。
// キーにデータセットの世代番号を含むため、再読み込み後は古い結果に当たりません。
type QueryCache struct {
	memory *Cache[string, *CachedQuery]
	redis  *redis.Client
	ttl    time.Duration
}

// NewRedisClient はREDIS_ADDRが設定されている場合のクライアントを返します。
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewQueryCache は新しいQueryCacheを生成します。ttlが0以下ならキャッシュしません。
func NewQueryCache(ttl time.Duration, client *redis.Client) *QueryCache {
	if ttl <= 0 {
		return &QueryCache{}
	}
	return &QueryCache{
		memory: NewCache[string, *CachedQuery](ttl, time.Minute),
		redis:  client,
		ttl:    ttl,
	}
}

// Enabled キャッシュが有効か
func (q *QueryCache) Enabled() bool {
	return q != nil && q.memory != nil
}

// CacheKey はフィルタとデータセット世代からキーを作ります。
func CacheKey(f models.Filter, version uint64) string {
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(append(b, []byte(fmt.Sprintf("|v%d", version))...))
	return hex.EncodeToString(sum[:])
}

// Get はメモリ、次にRedisを探します。Redisの障害はミスとして扱います。
func (q *QueryCache) Get(ctx context.Context, key string) (*CachedQuery, bool) {
	if !q.Enabled() {
		return nil, false
	}
	if v, ok := q.memory.Get(key); ok {
		return v, true
	}
	if q.redis == nil {
		return nil, false
	}

	data, err := q.redis.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("⚠️ [cache] Redisからの取得に失敗: %v", err)
		}
		return nil, false
	}
	var v CachedQuery
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		log.Printf("⚠️ [cache] キャッシュデータの解析に失敗: %v", err)
		return nil, false
	}
	q.memory.Set(key, &v)
	return &v, true
}

// Set は両方の段に保存します。Redisへの保存失敗はログのみです。
func (q *QueryCache) Set(ctx context.Context, key string, v *CachedQuery) {
	if !q.Enabled() {
		return
	}
	q.memory.Set(key, v)
	if q.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ [cache] キャッシュデータのJSON化に失敗: %v", err)
		return
	}
	if err := q.redis.Set(ctx, redisKeyPrefix+key, data, q.ttl).Err(); err != nil {
		log.Printf("⚠️ [cache] Redisへの保存に失敗: %v", err)
	}
}

// Purge はメモリ段を空にします（Redis側はTTLと世代番号で失効）。
func (q *QueryCache) Purge() {
	if q.Enabled() {
		q.memory.Purge()
	}
}

// Close はクリーンアップとRedis接続を終了します。
func (q *QueryCache) Close() error {
	if !q.Enabled() {
		return nil
	}
	q.memory.Stop()
	if q.redis != nil {
		return q.redis.Close()
	}
	return nil
}
