package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"pdf-from-html/internal/infra/logging"
)

type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns a Redis-backed limiter store, or an in-memory one when
// Addr is empty or Redis cannot be reached.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	if cfg.Addr == "" {
		logging.Info("Using in-memory store for rate limiting")
		return memoryStorage.New()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
