package inflight

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/costbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig picks the Redis guard when REDIS_ADDR is set, the memory guard otherwise.
func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Guard {
	if cfg.RedisAddr == "" {
		log.Info("inflight guard using process memory")
		return NewMemoryGuard()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("inflight redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	log.Info("inflight guard using redis", zap.String("addr", cfg.RedisAddr))
	return NewRedisGuard(client, time.Duration(cfg.SaveLockTTL)*time.Second)
}

var Module = fx.Module("inflight",
	fx.Provide(NewFromConfig),
)
