package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient implements ObjectStorage for MinIO and other S3-compatible services.
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient builds a client for the configured bucket. The bucket is
// not created.
func NewMinioClient(cfg config.StorageConfig) (*MinioClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}

	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

// ListObjects lists all objects for a given prefix.
func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("storage list failed: %w", object.Err)
		}
		results = append(results, ObjectInfo{
			Key:  object.Key,
			Size: object.Size,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *MinioClient) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := c.client.FGetObject(ctx, c.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("storage download %s failed: %w", key, err)
	}
	return nil
}

// UploadObject stores data under key.
func (c *MinioClient) UploadObject(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return fmt.Errorf("storage upload %s failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*MinioClient)(nil)

// normalizeEndpoint strips any scheme, which minio expects as a flag instead.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	}
	return strings.TrimPrefix(endpoint, "//"), useSSL
}

func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
