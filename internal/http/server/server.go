package server

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/http/handlers"
	"pdf-from-html/internal/http/middleware"
	"pdf-from-html/internal/infra/logging"
	"pdf-from-html/internal/infra/ratelimit"
	"pdf-from-html/internal/tokens"
)

type Deps struct {
	Config    config.Config
	Converter handlers.Converter
	// Tokens is required when Config.Auth.Enabled is set.
	Tokens *tokens.Cache
	// Redis, when set, backs the readiness probe.
	Redis *redis.Client
	// LimitStore defaults to ratelimit.NewStore for Config.Cache.
	LimitStore fiber.Storage
}

// New builds the HTTP app: global middleware, /v1 routes and a JSON 404.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Server.BodyLimitBytes,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, cfg, readyChecks(d)...)

	if cfg.Server.Monitor {
		app.Get("/ops/monitor", monitor.New())
	}

	store := d.LimitStore
	if store == nil {
		store = ratelimit.NewStore(ratelimit.RedisConfig{Addr: cfg.Cache.RedisHost, DB: cfg.Cache.RateLimitDB})
	}
	rl := middleware.RateLimitConfigFrom(cfg)

	v1 := app.Group("/v1")
	if cfg.Auth.Enabled {
		v1.Use(middleware.APIKeyAuth(d.Tokens, tokens.ScopeConvert))
		v1.Use(middleware.TokenRateLimit(rl, d.Tokens, store, middleware.NewLimiterCache()))
	}
	if rl.EnableUserLimiter {
		v1.Use(middleware.UserRateLimit(rl, store))
	}
	v1.Post("/convert", handlers.NewConvertHandler(d.Converter).Handle)

	// Ensure all responses, including 404s, return JSON.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func readyChecks(d Deps) []middleware.ReadyFunc {
	var checks []middleware.ReadyFunc
	if d.Redis != nil {
		checks = append(checks, func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})
	}
	if d.Config.Auth.Enabled && d.Tokens != nil {
		checks = append(checks, func(context.Context) error {
			if !d.Tokens.Ready() {
				return tokens.ErrNotReady
			}
			return nil
		})
	}
	return checks
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
