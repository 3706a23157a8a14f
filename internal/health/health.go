package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/redis"
)

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, cache *redis.Cache, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	// 存活检查：进程本身没问题就算活着
	c.health.AddLivenessCheck("goroutine", healthcheck.GoroutineCountCheck(1000))

	// 就绪检查：依赖的存储必须可用
	c.health.AddReadinessCheck("storage", func() error {
		return store.Health()
	})

	if cache != nil {
		c.health.AddReadinessCheck("redis", func() error {
			return cache.Health()
		})
	}

	return c
}

// LiveEndpoint 存活检查端点
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查端点
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}
