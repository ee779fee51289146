package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"pdf-from-html/internal/tokens"
)

// APIKeyLocal is the Locals key holding the validated API key.
const APIKeyLocal = "api_key"

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth requires a known API key with scope in the X-API-Key header.
func APIKeyAuth(cache *tokens.Cache, scope string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + APIKeyHeader,
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := cache.Validate(key, scope); err != nil {
				return false, err
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error.
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			status := fiber.StatusUnauthorized
			switch {
			case errors.Is(err, tokens.ErrNotReady):
				status = fiber.StatusServiceUnavailable
			case errors.Is(err, tokens.ErrScopeDenied):
				status = fiber.StatusForbidden
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    status,
					"message": err.Error(),
				},
			})
		},
	})
}
