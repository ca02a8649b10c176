package blob

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/patrickmn/go-cache"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// URLTTL is how long a presigned download URL stays valid.
	URLTTL time.Duration
}

// MinioStore keeps audio in an S3-compatible bucket. Presigned URLs are
// cached for half their lifetime so a listing does not re-sign every ref.
type MinioStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	urls   *cache.Cache
	logger *slog.Logger
	now    func() time.Time
	unique func() string
}

func NewMinioStore(cfg MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, cfg.URLTTL, logger), nil
}

func NewMinioStoreWithClient(client *minio.Client, bucket string, ttl time.Duration, logger *slog.Logger) *MinioStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MinioStore{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		urls:   cache.New(ttl/2, ttl),
		logger: logger,
		now:    time.Now,
		unique: newUnique,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", "bucket", s.bucket)
	return nil
}

func (s *MinioStore) Put(ctx context.Context, obj Object) (string, error) {
	key := ObjectKey(obj.OwnerID, obj.Filename, s.now(), s.unique())
	size := obj.Size
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, obj.Body, size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// Remove deletes ref. Removing an object that does not exist succeeds.
func (s *MinioStore) Remove(ctx context.Context, ref string) error {
	s.urls.Delete(ref)
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", ref, err)
	}
	return nil
}

// URLFor returns a presigned download URL for ref.
func (s *MinioStore) URLFor(ctx context.Context, ref string) (string, error) {
	if cached, found := s.urls.Get(ref); found {
		return cached.(string), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", ref, err)
	}
	signed := u.String()
	s.urls.Set(ref, signed, cache.DefaultExpiration)
	return signed, nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("ping bucket %s: %w", s.bucket, err)
	}
	return nil
}
