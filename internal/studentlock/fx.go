package studentlock

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/smallbiznis/tuitionledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("student.lock",
	fx.Provide(New),
	fx.Provide(NewGuard),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.LedgerMetrics `optional:"true"`
}

// New picks the Redis locker when REDIS_ADDR is configured and falls back to
// in-process locks otherwise.
func New(p Params) Locker {
	addr := strings.TrimSpace(p.Config.RedisAddr)
	if addr == "" {
		p.Log.Info("student locks held in process")
		return WithMetrics(NewLocalLocker(), p.Metrics)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Config.RedisPassword),
		DB:       p.Config.RedisDB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return client.Close()
			},
		})
	}

	p.Log.Info("student locks held in redis", zap.String("addr", addr))
	ttl := time.Duration(p.Config.LockTTLSec) * time.Second
	return WithMetrics(NewRedisLocker(client, ttl, p.Log), p.Metrics)
}
