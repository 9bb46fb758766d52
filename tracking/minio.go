package tracking

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// MinioConfig addresses an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`
}

// Validate reports missing connection settings.
func (c MinioConfig) Validate() error {
	switch {
	case c.Endpoint == "":
		return errors.NewValidationError("tracking.minio.endpoint", "is required", c.Endpoint)
	case c.AccessKey == "" || c.SecretKey == "":
		return errors.NewValidationError("tracking.minio.access_key", "credentials are required", "")
	case c.Bucket == "":
		return errors.NewValidationError("tracking.minio.bucket", "is required", c.Bucket)
	}
	return nil
}

// MinioStore keeps blobs in an S3-compatible bucket (MinIO, AWS S3, ...).
// It is safe for concurrent use by multiple goroutines.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to the bucket and creates it when missing.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check bucket existence")
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "create bucket")
		}
	}
	return &MinioStore{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinioStore) key(key string) string {
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

// Put streams r into the bucket.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(key), r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return errors.Wrapf(err, "put %s", key)
}

// Get streams the object. The stat call surfaces missing keys before the caller reads.
func (m *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return obj, nil
}

// Delete removes an object by key.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(m.client.RemoveObject(ctx, m.bucket, m.key(key), minio.RemoveObjectOptions{}), "delete %s", key)
}
