package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/infra/logging"
)

type RateLimitConfig struct {
	RateInterval           time.Duration
	EnableTokenRateLimiter bool
	EnableUserLimiter      bool
	UserLimit              int
}

// RateLimitConfigFrom derives limiter settings from the service config.
// Token limits only apply when API keys are checked.
func RateLimitConfigFrom(cfg config.Config) RateLimitConfig {
	return RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableTokenRateLimiter: cfg.Auth.Enabled,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0,
		UserLimit:              cfg.RateLimiter.UserLimit,
	}
}

// TokenRater returns the requests-per-interval budget of an API key.
type TokenRater interface {
	RateLimit(token string) int
}

// LimiterCache keeps one limiter per distinct limit value.
type LimiterCache struct {
	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

func NewLimiterCache() *LimiterCache {
	return &LimiterCache{handlers: make(map[int]fiber.Handler)}
}

func (lc *LimiterCache) get(limit int, build func() fiber.Handler) fiber.Handler {
	lc.mu.RLock()
	h, ok := lc.handlers[limit]
	lc.mu.RUnlock()
	if ok {
		return h
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if h, ok := lc.handlers[limit]; ok {
		return h
	}
	h = build()
	lc.handlers[limit] = h
	return h
}

func apiKey(c *fiber.Ctx) string {
	token, _ := c.Locals(APIKeyLocal).(string)
	return token
}

// TokenRateLimit applies per-key sliding window limits. Keys with a zero
// limit are not limited.
func TokenRateLimit(cfg RateLimitConfig, rater TokenRater, store fiber.Storage, cache *LimiterCache) fiber.Handler {
	if !cfg.EnableTokenRateLimiter {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		token := apiKey(c)
		if token == "" {
			return c.Next()
		}
		limit := rater.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		h := cache.get(limit, func() fiber.Handler {
			return limiter.New(limiter.Config{
				Max:               limit,
				Expiration:        cfg.RateInterval,
				LimiterMiddleware: limiter.SlidingWindow{},
				Storage:           store,
				KeyGenerator:      apiKey,
				LimitReached: func(c *fiber.Ctx) error {
					logging.Warn("Rate limit exceeded", "token", maskKey(apiKey(c)), "path", c.Path())
					return tooManyRequests(c)
				},
			})
		})
		return h(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// UserRateLimit limits anonymous clients by IP and User-Agent. Requests that
// carry an API key are left to TokenRateLimit.
func UserRateLimit(cfg RateLimitConfig, store fiber.Storage) fiber.Handler {
	if cfg.UserLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.UserLimit,
		Expiration:        cfg.RateInterval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		if apiKey(c) != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusTooManyRequests,
			"message": "Too Many Requests",
		},
	})
}

func maskKey(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return k[:4] + "****"
}
