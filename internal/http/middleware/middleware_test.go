package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/tokens"
)

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	healthResp, err := app.Test(httpReq(http.MethodGet, LivenessPath, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, healthResp.StatusCode)

	readyResp, err := app.Test(httpReq(http.MethodGet, ReadinessPath, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, readyResp.StatusCode)

	resp, err := app.Test(httpReq(http.MethodGet, "/ping", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRegister_ReadinessFailsWhenCheckFails(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{},
		func(context.Context) error { return nil },
		func(context.Context) error { return errors.New("redis down") },
	)

	resp, err := app.Test(httpReq(http.MethodGet, ReadinessPath, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	live, err := app.Test(httpReq(http.MethodGet, LivenessPath, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, live.StatusCode)
}

func TestRegister_CORSOrigins(t *testing.T) {
	var cfg config.Config
	cfg.Server.AllowOrigins = "https://app.example.com"
	app := fiber.New()
	Register(app, cfg)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httpReq(http.MethodGet, "/ping", "")
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func httpReq(method, target, apiKey string) *http.Request {
	req, _ := http.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	return req
}

func authApp(cache *tokens.Cache) *fiber.App {
	app := fiber.New()
	app.Use(APIKeyAuth(cache, tokens.ScopeConvert))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(apiKey(c))
	})
	return app
}

func TestAPIKeyAuth(t *testing.T) {
	cache := tokens.NewCache()
	app := authApp(cache)

	resp, err := app.Test(httpReq(http.MethodGet, "/", "abc"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, "cache not loaded yet")

	cache.Replace(map[string]tokens.Entry{
		"abc":     {RateLimit: 1, Scope: tokens.Scope{tokens.ScopeConvert: true}},
		"opsonly": {RateLimit: 1, Scope: tokens.Scope{"ops": true}},
	})

	resp, err = app.Test(httpReq(http.MethodGet, "/", "abc"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "abc", string(body))

	resp, err = app.Test(httpReq(http.MethodGet, "/", "nope"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httpReq(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httpReq(http.MethodGet, "/", "opsonly"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

type fakeTokenRater struct{ limit int }

func (f fakeTokenRater) RateLimit(string) int { return f.limit }

func withKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(APIKeyLocal, key)
		return c.Next()
	}
}

func TestTokenRateLimit_Enforced(t *testing.T) {
	app := fiber.New()
	cfg := RateLimitConfig{RateInterval: time.Hour, EnableTokenRateLimiter: true}
	app.Use(withKey("abc"))
	app.Use(TokenRateLimit(cfg, fakeTokenRater{limit: 1}, memoryStorage.New(), NewLimiterCache()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp1, err := app.Test(httpReq(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp1.StatusCode)

	resp2, err := app.Test(httpReq(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp2.StatusCode)
	body, _ := io.ReadAll(resp2.Body)
	assert.JSONEq(t, `{"error":{"code":429,"message":"Too Many Requests"}}`, string(body))
}

func TestTokenRateLimit_DisabledOrUnlimited(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg   RateLimitConfig
		limit int
	}{
		"disabled":   {cfg: RateLimitConfig{RateInterval: time.Hour}, limit: 1},
		"zero limit": {cfg: RateLimitConfig{RateInterval: time.Hour, EnableTokenRateLimiter: true}, limit: 0},
	} {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withKey("abc"))
			app.Use(TokenRateLimit(tc.cfg, fakeTokenRater{limit: tc.limit}, memoryStorage.New(), NewLimiterCache()))
			app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

			for i := 0; i < 3; i++ {
				resp, err := app.Test(httpReq(http.MethodGet, "/", ""))
				require.NoError(t, err)
				assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			}
		})
	}
}

func TestLimiterCache_ReusesHandlerPerLimit(t *testing.T) {
	lc := NewLimiterCache()
	builds := 0
	build := func() fiber.Handler {
		builds++
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	lc.get(5, build)
	lc.get(5, build)
	lc.get(7, build)
	assert.Equal(t, 2, builds)
}

func TestUserRateLimit_PublicLimitedButTokenBypasses(t *testing.T) {
	cfg := RateLimitConfig{RateInterval: time.Hour, EnableUserLimiter: true, UserLimit: 1}

	app := fiber.New()
	app.Use(UserRateLimit(cfg, memoryStorage.New()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	publicReq := httpReq(http.MethodGet, "/", "")
	publicReq.Header.Set("User-Agent", "public-client")
	resp1, err := app.Test(publicReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp1.StatusCode)

	resp2, err := app.Test(publicReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp2.StatusCode)

	appWithToken := fiber.New()
	appWithToken.Use(withKey("abc"))
	appWithToken.Use(UserRateLimit(cfg, memoryStorage.New()))
	appWithToken.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	for i := 0; i < 2; i++ {
		resp, err := appWithToken.Test(httpReq(http.MethodGet, "/", ""))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRateLimitConfigFrom(t *testing.T) {
	var cfg config.Config
	cfg.RateLimiter.Interval = time.Minute
	cfg.RateLimiter.UserLimit = 10
	cfg.Auth.Enabled = true

	got := RateLimitConfigFrom(cfg)
	assert.Equal(t, RateLimitConfig{
		RateInterval:           time.Minute,
		EnableTokenRateLimiter: true,
		EnableUserLimiter:      true,
		UserLimit:              10,
	}, got)
}
