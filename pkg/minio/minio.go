package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fundwave/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewStorage))

// Uploader stores an object and returns the URL clients fetch it from.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

func registerClient(lc fx.Lifecycle, c *config.Config) (*minio.Client, error) {
	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Error("failed to create MinIO client", zap.Error(err))
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			exists, err := client.BucketExists(ctx, c.Minio.BucketName)
			if err != nil {
				zap.L().Warn("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
				return nil
			}
			if !exists {
				if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
					zap.L().Warn("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
					return nil
				}
			}
			zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
			return nil
		},
	})

	return client, nil
}

type Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewStorage(client *minio.Client, c *config.Config) Uploader {
	publicURL := c.Minio.PublicURL
	if publicURL == "" {
		scheme := "http"
		if c.Minio.Secure {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, c.Minio.Endpoint, c.Minio.BucketName)
	}

	return &Storage{
		client:    client,
		bucket:    c.Minio.BucketName,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}
