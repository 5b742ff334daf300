package vectorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix Redis key 前缀
const cacheKeyPrefix = "linker:vec:"

// VectorCache 句子级向量缓存
type VectorCache interface {
	Get(ctx context.Context, key string) ([][]float64, bool, error)
	Set(ctx context.Context, key string, vectors [][]float64) error
}

// RedisVectorCache Redis 向量缓存
type RedisVectorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisVectorCache 创建 Redis 向量缓存，ttl 为 0 表示不过期
func NewRedisVectorCache(client *redis.Client, ttl time.Duration) *RedisVectorCache {
	return &RedisVectorCache{client: client, ttl: ttl}
}

// Get 读取缓存
func (c *RedisVectorCache) Get(ctx context.Context, key string) ([][]float64, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}

	var vectors [][]float64
	if err := json.Unmarshal(val, &vectors); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached vectors: %w", err)
	}
	return vectors, true, nil
}

// Set 写入缓存
func (c *RedisVectorCache) Set(ctx context.Context, key string, vectors [][]float64) error {
	data, err := json.Marshal(vectors)
	if err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedProvider 在任意 Provider 前加一层句子级缓存。
// 缓存不可用时退化为直接调用。
type CachedProvider struct {
	next      Provider
	cache     VectorCache
	namespace string
}

// NewCachedProvider 创建带缓存的提供方；namespace 区分模型，避免不同模型的向量互相覆盖
func NewCachedProvider(next Provider, cache VectorCache, namespace string) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, namespace: namespace}
}

// EmbedTokens 先查缓存，未命中时调用下游并回写
func (p *CachedProvider) EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error) {
	key := p.key(tokens)

	vectors, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Printf("Warning: vector cache read failed: %v", err)
	} else if ok && len(vectors) == len(tokens) {
		return vectors, nil
	}

	vectors, err = p.next.EmbedTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, vectors); err != nil {
		log.Printf("Warning: vector cache write failed: %v", err)
	}
	return vectors, nil
}

// key 按命名空间和词元序列生成缓存键
func (p *CachedProvider) key(tokens []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(p.namespace)
	_, _ = h.WriteString("\x1e")
	_, _ = h.WriteString(strings.Join(tokens, "\x1f"))
	return fmt.Sprintf("%s%s:%016x", cacheKeyPrefix, p.namespace, h.Sum64())
}

// Close 关闭下游提供方
func (p *CachedProvider) Close() error {
	return p.next.Close()
}
