// Package storage moves source documents and rendered PDFs between object
// storage and the local scratch area.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"pdf-from-html/internal/domain"
	"pdf-from-html/internal/infra/logging"
)

// ObjectStore is the low-level object storage client.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, localPath string) error
	Upload(ctx context.Context, bucket, key, localPath string) error
}

// Gateway fetches sources into scratch directories and stores results.
type Gateway struct {
	store ObjectStore
}

func NewGateway(store ObjectStore) *Gateway {
	return &Gateway{store: store}
}

// Fetch downloads bucket/key to dir/<base name of key> and returns that path.
// Every failure wraps domain.ErrStorageFetch.
func (g *Gateway) Fetch(ctx context.Context, bucket, key, dir string) (string, error) {
	name := path.Base(key)
	if key == "" || name == "/" || name == "." {
		return "", fmt.Errorf("%w: invalid key %q", domain.ErrStorageFetch, key)
	}
	local := filepath.Join(dir, name)
	if err := g.store.Download(ctx, bucket, key, local); err != nil {
		return "", fmt.Errorf("%w: %s/%s: %v", domain.ErrStorageFetch, bucket, key, err)
	}
	logging.Info("Downloaded source file", "bucket", bucket, "key", key, "path", local)
	return local, nil
}

// Store uploads localPath to bucket/key. On failure it logs the cause and
// returns ok=false instead of an error.
func (g *Gateway) Store(ctx context.Context, bucket, key, localPath string) (string, bool) {
	if _, err := os.Stat(localPath); err != nil {
		logging.Error("Failed to upload file", "bucket", bucket, "key", key, "error", err)
		return "", false
	}
	if err := g.store.Upload(ctx, bucket, key, localPath); err != nil {
		logging.Error("Failed to upload file", "bucket", bucket, "key", key, "error", err)
		return "", false
	}
	logging.Info("Uploaded PDF", "bucket", bucket, "key", key)
	return key, true
}
