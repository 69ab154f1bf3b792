package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smsrelay/internal/config"
	"smsrelay/internal/logger"
	"smsrelay/pkg/metrics"
	"smsrelay/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
	Policy retry.Policy
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
		Policy: retry.DefaultPolicy(),
	}
}

// RedisEnabled reports whether a Redis backend is configured. Without one the
// relay runs on the in-process store.
func (dc *DatabaseConnector) RedisEnabled() bool {
	return dc.Config.Database.Redis.Host != ""
}

// InitRedis connects to Redis, retrying the initial ping with backoff.
// It returns (nil, nil) when Redis is not configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if !dc.RedisEnabled() {
		return nil, nil
	}

	port := dc.Config.Database.Redis.Port
	if port == 0 {
		port = 6379
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	err := retry.Retry(ctx, dc.Policy, func() error {
		return rdb.Ping(ctx).Err()
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("redis_connect").Inc()
		dc.Logger.Warnw("Redis ping failed, retrying",
			"attempt", attempt,
			"error", err,
			"next_delay", nextDelay,
		)
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	return errs
}
