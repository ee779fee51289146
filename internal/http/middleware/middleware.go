package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/infra/logging"
)

const (
	LivenessPath  = "/ops/health"
	ReadinessPath = "/ops/ready"
)

// ReadyFunc reports whether a dependency is usable.
type ReadyFunc func(ctx context.Context) error

// Register attaches the global middleware: CORS, request ids, health probes
// and request logging. Each ready check must pass for /ops/ready to be 200.
func Register(app *fiber.App, cfg config.Config, ready ...ReadyFunc) {
	corsCfg := cors.ConfigDefault
	if cfg.Server.AllowOrigins != "" {
		corsCfg.AllowOrigins = cfg.Server.AllowOrigins
	}
	app.Use(cors.New(corsCfg))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  LivenessPath,
		LivenessProbe:     func(*fiber.Ctx) bool { return true },
		ReadinessEndpoint: ReadinessPath,
		ReadinessProbe: func(c *fiber.Ctx) bool {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			for _, check := range ready {
				if err := check(ctx); err != nil {
					logging.Warn("Readiness check failed", "error", err)
					return false
				}
			}
			return true
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logging.Info("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return err
	})
}
