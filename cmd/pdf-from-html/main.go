package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/conversion"
	"pdf-from-html/internal/http/server"
	"pdf-from-html/internal/infra/logging"
	"pdf-from-html/internal/infra/postgres"
	"pdf-from-html/internal/infra/renderer"
	"pdf-from-html/internal/infra/storage"
	"pdf-from-html/internal/tokens"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "invoke" {
		os.Exit(runInvoke(os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
	}
	serve()
}

func serve() {
	cfg := config.Load()
	if err := ensureLogDir(cfg.Logger.File); err != nil {
		logging.Error("Failed to create log directory", "error", err)
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	setMaxProcs()

	svc, err := newService(cfg)
	if err != nil {
		logging.Error("Failed to build conversion service", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cache *tokens.Cache
	if cfg.Auth.Enabled {
		cache, err = startTokenReloader(ctx, cfg)
		if err != nil {
			logging.Error("Failed to start token reloader", "error", err)
			os.Exit(1)
		}
	}

	app := server.New(server.Deps{
		Config:    cfg,
		Converter: svc,
		Tokens:    cache,
		Redis:     rdb,
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

func setMaxProcs() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logging.Debug(fmt.Sprintf(format, args...))
	}))
}

// newService wires storage and the renderer into a conversion service.
func newService(cfg config.Config) (*conversion.Service, error) {
	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return conversion.NewService(conversion.Deps{
		Storage:       storage.NewGateway(store),
		Renderer:      renderer.New(cfg),
		Bucket:        cfg.Storage.Bucket,
		Project:       cfg.Conversion.Project,
		DefaultFolder: cfg.Conversion.DefaultFolder,
		ScratchRoot:   cfg.Conversion.ScratchDir,
		KeepScratch:   cfg.Conversion.KeepScratch,
	}), nil
}

func startTokenReloader(ctx context.Context, cfg config.Config) (*tokens.Cache, error) {
	dsn, err := cfg.Auth.Postgres.DSN()
	if err != nil {
		return nil, err
	}
	cache := tokens.NewCache()
	repo := postgres.NewTokenRepository(postgres.NewDB(), dsn)
	tokens.NewReloader(repo, cache, cfg.Auth.ReloadInterval).Start(ctx)
	return cache, nil
}

// startServer starts the Fiber app and listens for shutdown signals.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}

func ensureLogDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
