package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL базовый адрес, по которому бакет доступен снаружи.
	PublicURL string
}

// MinioStore кладёт файлы в S3-совместимый бакет.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
	now    func() time.Time
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать клиент minio: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg, now: time.Now}, nil
}

// EnsureBucket создаёт бакет, если его ещё нет.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("storage: не удалось проверить бакет: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("storage: не удалось создать бакет: %w", err)
		}
	}
	return nil
}

func (s *MinioStore) Store(ctx context.Context, r io.Reader, meta gateway.FileMeta) (string, error) {
	name := objectName(meta, s.now())
	size := meta.Size
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, name, r, size, minio.PutObjectOptions{
		ContentType: meta.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: не удалось загрузить файл: %w", err)
	}
	return s.publicURL(name), nil
}

func (s *MinioStore) publicURL(name string) string {
	if s.cfg.PublicURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.cfg.PublicURL, s.cfg.Bucket, name)
	}
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, name)
}
