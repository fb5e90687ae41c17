// Package ratelimit enforces connection and message rate limits, backed by
// Redis when available and local memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
)

// RateLimiter holds the two WebSocket limiters: connections per IP and
// inbound messages per player.
type RateLimiter struct {
	wsIP     *limiter.Limiter
	wsPlayer *limiter.Limiter
	store    limiter.Store
}

// NewRateLimiter parses the configured rates and picks the store: Redis
// when a client is provided, in-process memory otherwise.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	ipRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	playerRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsPlayer)
	if err != nil {
		return nil, fmt.Errorf("invalid WS player rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "Rate limiter using memory store (Redis disabled or unavailable)")
	}

	return &RateLimiter{
		wsIP:     limiter.New(store, ipRate),
		wsPlayer: limiter.New(store, playerRate),
		store:    store,
	}, nil
}

// CheckConnection gates a WebSocket upgrade by client IP. Writes the 429
// response itself when the limit is reached. Store failures fail open.
func (rl *RateLimiter) CheckConnection(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	ipContext, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err), zap.String("scope", "ip"))
		return true
	}
	if ipContext.Reached {
		metrics.RateLimitHits.WithLabelValues("ip").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(ipContext.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this IP"})
		return false
	}
	return true
}

// AllowMessage gates one inbound message for a player. Store failures
// fail open.
func (rl *RateLimiter) AllowMessage(ctx context.Context, playerID string) bool {
	playerContext, err := rl.wsPlayer.Get(ctx, playerID)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err), zap.String("scope", "player"))
		return true
	}
	if playerContext.Reached {
		metrics.RateLimitHits.WithLabelValues("player").Inc()
		return false
	}
	return true
}
