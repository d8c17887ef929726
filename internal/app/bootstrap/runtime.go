package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-site/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-site/internal/http/middleware"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildChatLimiter throttles chat turns per client. It shares counters through
// Redis when a client is given and falls back to an in-process token bucket,
// whose eviction loop runs until ctx is done. A non-positive limit disables it.
func BuildChatLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if cfg == nil || cfg.ChatRateLimitPerMinute <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("chat rate limit backed by redis", "per_minute", cfg.ChatRateLimitPerMinute)
		return httpmiddleware.NewRedisRateLimiter(redisClient, "clinic:chat", cfg.ChatRateLimitPerMinute, time.Minute)
	}
	limiter := httpmiddleware.PerMinute(cfg.ChatRateLimitPerMinute)
	go limiter.Run(ctx)
	logger.Info("chat rate limit in memory", "per_minute", cfg.ChatRateLimitPerMinute)
	return limiter
}
