package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issues/internal/config"
	"github.com/spec-kit/civic-issues/internal/persistence"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// RateLimiter applies a fixed-window per-client limit backed by Redis, so
// the limit holds across replicas. Used on the public auth endpoints.
type RateLimiter struct {
	redis  *persistence.Redis
	logger *zap.Logger
	limit  int
	window time.Duration
}

// NewRateLimiter constructs the limiter.
func NewRateLimiter(redis *persistence.Redis, logger *zap.Logger, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limit:  cfg.Requests,
		window: cfg.Window(),
	}
}

// Handle counts the request against the caller's window and rejects once
// the limit is exceeded. Redis being unreachable fails open; throttling is
// protection, not a correctness requirement.
func (rl *RateLimiter) Handle(c *fiber.Ctx) error {
	if rl.redis == nil || rl.redis.Client == nil || rl.limit <= 0 {
		return c.Next()
	}

	key := fmt.Sprintf("ratelimit:%s:%d", c.IP(), time.Now().Unix()/int64(rl.window.Seconds()))
	count, err := rl.redis.Client.Incr(c.Context(), key).Result()
	if err != nil {
		rl.logger.Warn("rate limiter unavailable", zap.Error(err))
		return c.Next()
	}
	if count == 1 {
		rl.redis.Client.Expire(c.Context(), key, rl.window)
	}
	if count > int64(rl.limit) {
		return apperrors.NewDomainError("RATE_LIMITED", "too many requests, try again later", fiber.StatusTooManyRequests)
	}
	return c.Next()
}
