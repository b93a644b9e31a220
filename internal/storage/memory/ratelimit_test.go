package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitCounter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	counter := NewRateLimitCounter()
	counter.now = func() time.Time { return now }

	t.Run("同一窗口内累加", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, resetAt, err := counter.IncrementRateLimit(ctx, "1.2.3.4", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, count)
			assert.Equal(t, now.Add(time.Minute), resetAt)
		}
	})

	t.Run("不同 key 独立计数", func(t *testing.T) {
		count, _, err := counter.IncrementRateLimit(ctx, "5.6.7.8", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("窗口过期后重置", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		count, resetAt, err := counter.IncrementRateLimit(ctx, "1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, now.Add(time.Minute), resetAt)
	})
}
