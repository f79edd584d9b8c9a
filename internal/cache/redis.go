package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "moodlens:insights:"

// RedisCache はRedisを使ったReportCache実装。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis はRedisCacheを生成する。ttlが0以下の場合は15分を使う。
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Ping はRedisへの疎通を確認する。
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func versionKey(userID string) string {
	return keyPrefix + "ver:" + userID
}

func reportKey(userID string, version int64, rangeDays int) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, userID, version, rangeDays)
}

func (c *RedisCache) version(ctx context.Context, userID string) (int64, error) {
	raw, err := c.client.Get(ctx, versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache version: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cache version %q: %w", raw, err)
	}
	return v, nil
}

// Lookup は現在の世代のレポートを取得する。
func (c *RedisCache) Lookup(ctx context.Context, userID string, rangeDays int) (Lookup, error) {
	v, err := c.version(ctx, userID)
	if err != nil {
		return Lookup{}, err
	}

	data, err := c.client.Get(ctx, reportKey(userID, v, rangeDays)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Lookup{Version: v}, nil
	}
	if err != nil {
		return Lookup{Version: v}, fmt.Errorf("failed to get cached report: %w", err)
	}
	return Lookup{Data: data, Version: v, Hit: true}, nil
}

// Store は指定世代のキーにレポートを書き込む。
func (c *RedisCache) Store(ctx context.Context, userID string, rangeDays int, version int64, data []byte) error {
	if err := c.client.Set(ctx, reportKey(userID, version, rangeDays), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached report: %w", err)
	}
	return nil
}

// Invalidate は世代番号を進める。古い世代のキーはTTLで消える。
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReportCache = (*RedisCache)(nil)
