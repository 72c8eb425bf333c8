package upload

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for the MinIO blob backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	// PublicBaseURL, when set, is used for record URLs (<base>/<key>).
	// Otherwise URLs point at the server's own /blobs route.
	PublicBaseURL string
}

// MinioBlobStore keeps blobs in one bucket of a MinIO/S3 server.
type MinioBlobStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

// BlobRoute is the server path prefix that streams MinIO objects back.
const BlobRoute = "/blobs"

func NewMinioBlobStore(cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = BlobRoute
	}
	return &MinioBlobStore{client: client, bucket: cfg.Bucket, region: cfg.Region, baseURL: base}, nil
}

// EnsureBucket creates the bucket on first use.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.baseURL + "/" + escapeKey(key), nil
}

// Open streams an object back; the caller closes it.
func (s *MinioBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, fmt.Errorf("get object %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, minio.ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, info, nil
}
