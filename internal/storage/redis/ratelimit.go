package redis

import (
	"context"
	"fmt"
	"time"

	"burnmail/backend/internal/storage"
)

const rateLimitPrefix = "ratelimit"

var _ storage.RateLimitRepository = (*Client)(nil)

// IncrementRateLimit 在 Redis 中按固定窗口计数
//
// 每个窗口对应一个独立的 key（窗口起始时间作为后缀），INCR 与 EXPIRE
// 在同一个 pipeline 中执行，窗口结束后 key 自动过期。多个实例共享同一计数。
func (c *Client) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	bucketKey, resetAt := windowBucket(key, window, time.Now())

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.ExpireAt(ctx, bucketKey, resetAt)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate limit: %w", err)
	}
	return incr.Val(), resetAt, nil
}

// windowBucket 计算当前时间所在窗口的 key 与窗口结束时间
func windowBucket(key string, window time.Duration, now time.Time) (string, time.Time) {
	if window <= 0 {
		window = time.Minute
	}
	start := now.Truncate(window)
	return fmt.Sprintf("%s:%s:%d", rateLimitPrefix, key, start.Unix()), start.Add(window)
}
