package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	pingTimeout        = 3 * time.Second
	maxGoroutines      = 10000
	readinessCheckName = "store"
)

// Pinger 可以探测连通性的依赖，例如存储与 Redis
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器
type Checker struct {
	handler healthcheck.Handler
	logger  *zap.Logger
}

// NewChecker 创建健康检查器。
// store 作为就绪检查必选项，extra 中的依赖按名称追加为就绪检查。
func NewChecker(store Pinger, extra map[string]Pinger, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		handler: healthcheck.NewHandler(),
		logger:  logger,
	}

	c.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	c.addReadiness(readinessCheckName, store)
	for name, dep := range extra {
		if dep != nil {
			c.addReadiness(name, dep)
		}
	}
	return c
}

func (c *Checker) addReadiness(name string, dep Pinger) {
	c.handler.AddReadinessCheck(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if err := dep.Ping(ctx); err != nil {
			c.logger.Warn("就绪检查失败", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	})
}

// LiveHandler 存活检查，只检查进程自身
func (c *Checker) LiveHandler() http.Handler {
	return http.HandlerFunc(c.handler.LiveEndpoint)
}

// ReadyHandler 就绪检查，同时检查所有依赖
func (c *Checker) ReadyHandler() http.Handler {
	return http.HandlerFunc(c.handler.ReadyEndpoint)
}
