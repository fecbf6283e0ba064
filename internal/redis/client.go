package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
)

// NewRedisClient connects to the Redis instance shared by the booking locks,
// the notification channel and the OTP store, and pings it once.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}

// NewLocker picks the booking lock implementation named by cfg.Locker.
func NewLocker(cfg config.Config, rdb *redis.Client) Locker {
	if cfg.Locker == "local" || rdb == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(rdb, cfg.LockTTL)
}
