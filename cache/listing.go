package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Romaly/logger"

	"github.com/go-redis/redis/v8"
)

// PageCache 公共列表的读缓存。实现必须在出错时降级为直接调用 fill。
type PageCache interface {
	// Fetch 命中时把缓存解码进 dst；未命中时由 fill 填充 dst，
	// 结果写回查询开始时看到的那一代，期间发生的写入不会被旧结果覆盖。
	Fetch(ctx context.Context, key string, dst interface{}, fill func() error) error
	Invalidate(ctx context.Context)
}

// Nop 关闭缓存时使用
type Nop struct{}

func (Nop) Fetch(_ context.Context, _ string, _ interface{}, fill func() error) error { return fill() }
func (Nop) Invalidate(context.Context)                                                {}

const generationKey = "romaly:listing:gen"

// ListingCache 基于代数的 Redis 缓存：任何写操作递增代数，旧代数的键自然过期
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{client: client, ttl: ttl}
}

func (c *ListingCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func entryKey(gen int64, key string) string {
	return fmt.Sprintf("romaly:listing:%d:%s", gen, key)
}

func (c *ListingCache) Fetch(ctx context.Context, key string, dst interface{}, fill func() error) error {
	gen, err := c.generation(ctx)
	if err != nil {
		logger.Warn("读取缓存代数失败", logger.ErrorField(err))
		return fill()
	}
	k := entryKey(gen, key)
	if c.load(ctx, k, dst) {
		return nil
	}
	if err := fill(); err != nil {
		return err
	}
	c.store(ctx, k, dst)
	return nil
}

func (c *ListingCache) load(ctx context.Context, k string, dst interface{}) bool {
	raw, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("读取缓存失败", logger.String("key", k), logger.ErrorField(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn("缓存内容损坏", logger.String("key", k), logger.ErrorField(err))
		return false
	}
	return true
}

func (c *ListingCache) store(ctx context.Context, k string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("序列化缓存失败", logger.String("key", k), logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		logger.Warn("写入缓存失败", logger.String("key", k), logger.ErrorField(err))
	}
}

func (c *ListingCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		logger.Warn("缓存失效失败", logger.ErrorField(err))
	}
}
