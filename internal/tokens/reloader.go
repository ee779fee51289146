package tokens

import (
	"context"
	"time"

	"pdf-from-html/internal/infra/logging"
)

// Repository loads the full token table.
type Repository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

// Reloader keeps a Cache in sync with a Repository.
type Reloader struct {
	repo     Repository
	cache    *Cache
	interval time.Duration
}

func NewReloader(repo Repository, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce refreshes the cache. On error the previous snapshot is kept.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	logging.Debug("API tokens loaded", "count", len(m))
	return nil
}

// Start reloads on every tick until ctx is done. The first load happens
// immediately.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		if err := r.LoadOnce(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("Failed to reload API tokens", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
