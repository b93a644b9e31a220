package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/storage"
	"burnmail/backend/internal/transport/http/response"
)

// RateLimiter 按客户端 IP 的固定窗口限流
type RateLimiter struct {
	counter storage.RateLimitRepository
	limit   int
	window  time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewRateLimiter 创建每分钟 perMinute 次的限流器
func NewRateLimiter(counter storage.RateLimitRepository, perMinute int, metrics *monitoring.Metrics, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		counter: counter,
		limit:   perMinute,
		window:  time.Minute,
		metrics: metrics,
		log:     log,
	}
}

// Middleware 返回限流中间件。
// 计数后端出错时放行请求，只记录日志和指标。
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		count, resetAt, err := rl.counter.IncrementRateLimit(c.Request.Context(), "ip:"+ip, rl.window)
		if err != nil {
			rl.metrics.RecordRateLimitError()
			rl.log.Warn("限流计数失败", zap.String("ip", ip), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(rl.limit) {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rl.metrics.RecordRateLimitBlock("ip")
			response.Abort(c, domain.NewError(domain.CodeRateLimited, response.MsgRateLimited), rl.log)
			return
		}

		c.Next()
	}
}
