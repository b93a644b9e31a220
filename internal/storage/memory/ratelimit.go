package memory

import (
	"context"
	"sync"
	"time"
)

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count   int64
	ResetAt time.Time
}

// RateLimitCounter 进程内的固定窗口计数器，不在多个实例之间共享，重启后清零。
type RateLimitCounter struct {
	mu          sync.Mutex
	entries     map[string]*rateLimitEntry
	nextCleanup time.Time
	now         func() time.Time
}

// NewRateLimitCounter 创建固定窗口计数器
func NewRateLimitCounter() *RateLimitCounter {
	return &RateLimitCounter{
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// IncrementRateLimit 增加限流计数，窗口过期后重新开始计数
func (c *RateLimitCounter) IncrementRateLimit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	// 定期清理过期条目
	if now.After(c.nextCleanup) {
		for k, v := range c.entries {
			if now.After(v.ResetAt) {
				delete(c.entries, k)
			}
		}
		c.nextCleanup = now.Add(5 * time.Minute)
	}

	entry, exists := c.entries[key]
	if !exists || now.After(entry.ResetAt) {
		entry = &rateLimitEntry{ResetAt: now.Add(window)}
		c.entries[key] = entry
	}
	entry.Count++

	return entry.Count, entry.ResetAt, nil
}
