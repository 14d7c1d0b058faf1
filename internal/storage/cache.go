package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/redis/go-redis/v9"
)

// RedisCache 缓存各数据源的原始结果，读写失败只记录日志
type RedisCache struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisCache(rdb *redis.Client, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{rdb: rdb, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]collector.RawArticle, bool) {
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("provider cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	var items []collector.RawArticle
	if err := json.Unmarshal(bs, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *RedisCache) Set(ctx context.Context, key string, items []collector.RawArticle, ttl time.Duration) {
	bs, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, bs, ttl).Err(); err != nil {
		c.log.Debug("provider cache set failed", "key", key, "err", err)
	}
}
