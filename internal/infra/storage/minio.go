package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioStore is an ObjectStore backed by the MinIO S3 client. It works against
// AWS S3 and any S3-compatible provider.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	// minio wants host[:port] without a scheme.
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		cfg.UseSSL = true
	}
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewIAM("")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

// Download writes bucket/key to localPath.
func (s *MinioStore) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	return nil
}

// Upload stores localPath under bucket/key.
func (s *MinioStore) Upload(ctx context.Context, bucket, key, localPath string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  contentType(localPath),
		UserMetadata: map[string]string{"uploaded-at": time.Now().Format(time.RFC3339)},
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
