package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Origin-Inc/e-invoicing-backend/logger"
	"github.com/Origin-Inc/e-invoicing-backend/metrics"
)

// RateLimitTier is a request budget per client address within a fixed window.
type RateLimitTier struct {
	Requests int64
	Window   time.Duration
}

var (
	TierStrict   = RateLimitTier{Requests: 5, Window: time.Minute}
	TierModerate = RateLimitTier{Requests: 30, Window: time.Minute}
	TierLenient  = RateLimitTier{Requests: 100, Window: time.Minute}
)

var tiers = map[string]RateLimitTier{
	"strict":   TierStrict,
	"moderate": TierModerate,
	"lenient":  TierLenient,
}

// TierByName looks up strict, moderate or lenient.
func TierByName(name string) (RateLimitTier, error) {
	tier, ok := tiers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return RateLimitTier{}, fmt.Errorf("unknown rate limit tier %q", name)
	}
	return tier, nil
}

// RateLimiter decides whether another request under key fits the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisRateLimiter counts requests in Redis with INCR and a window-long expiry,
// so every API replica shares the same budget.
type RedisRateLimiter struct {
	client counter
	tier   RateLimitTier
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, tier RateLimitTier) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, tier: tier, prefix: "ratelimit:"}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, fmt.Errorf("failed to increment %s: %w", k, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.tier.Window).Err(); err != nil {
			return true, 0, fmt.Errorf("failed to set expiry on %s: %w", k, err)
		}
	}
	if count <= l.tier.Requests {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return false, l.tier.Window, nil
	}
	if ttl < 0 {
		// The expiry from the first hit was lost; without one the key would block forever.
		if err := l.client.Expire(ctx, k, l.tier.Window).Err(); err != nil {
			return true, 0, fmt.Errorf("failed to set expiry on %s: %w", k, err)
		}
		ttl = l.tier.Window
	}
	return false, ttl, nil
}

// RateLimit rejects requests over budget with 429. When the limiter itself fails the request
// is let through.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	log := logger.WithComponent("ratelimit")
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitedTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

