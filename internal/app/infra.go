package app

import (
	"context"
	"errors"

	"social-auth/internal/config"
	"social-auth/internal/db"
	"social-auth/internal/logger"
	"social-auth/internal/redis"
	"social-auth/internal/tracing"
)

const serviceName = "social-auth"

type Infra struct {
	DB    *db.DB
	Redis *redis.Client // nil when REDIS_ADDR is unset

	shutdownTracing func(context.Context) error
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	if err := db.Migrate(ctx, database); err != nil {
		_ = database.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	logger.Info("database ready", nil)

	infra := &Infra{DB: database, shutdownTracing: shutdownTracing}

	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, key set snapshots disabled", nil)
		return infra, nil
	}

	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		_ = infra.Close(ctx)
		return nil, err
	}
	infra.Redis = redisClient

	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	return infra, nil
}

// Close releases every connection and flushes pending spans.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.shutdownTracing != nil {
		errs = append(errs, i.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
