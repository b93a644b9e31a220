package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowBucket(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("同一分钟内 key 相同", func(t *testing.T) {
		k1, reset1 := windowBucket("1.2.3.4", time.Minute, base.Add(5*time.Second))
		k2, reset2 := windowBucket("1.2.3.4", time.Minute, base.Add(59*time.Second))
		assert.Equal(t, k1, k2)
		assert.Equal(t, base.Add(time.Minute), reset1)
		assert.Equal(t, reset1, reset2)
	})

	t.Run("跨窗口 key 不同", func(t *testing.T) {
		k1, _ := windowBucket("1.2.3.4", time.Minute, base.Add(59*time.Second))
		k2, reset := windowBucket("1.2.3.4", time.Minute, base.Add(61*time.Second))
		assert.NotEqual(t, k1, k2)
		assert.Equal(t, base.Add(2*time.Minute), reset)
	})

	t.Run("key 格式", func(t *testing.T) {
		k, _ := windowBucket("ip", time.Minute, base)
		assert.Equal(t, "ratelimit:ip:1704110400", k)
	})
}
