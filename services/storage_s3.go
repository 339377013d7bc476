package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrS3BucketMissing      = errors.New("s3 storage: bucket is not configured")
	ErrS3CredentialsMissing = errors.New("s3 storage: endpoint or credentials are not configured")
)

const (
	s3PutTimeout    = 30 * time.Second
	s3DeleteTimeout = 15 * time.Second
)

// s3Storage keeps PatronHub media in an S3-compatible bucket (AWS, MinIO, R2).
type s3Storage struct {
	client *minio.Client
	bucket string
	// base is the URL prefix every object URL starts with, computed once.
	base string
}

func NewS3Storage(cfg S3Config) (Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrS3BucketMissing
	}
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrS3CredentialsMissing
	}
	host, secure, err := s3Endpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	cli, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       "auto",
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage: %w", err)
	}
	return &s3Storage{
		client: cli,
		bucket: cfg.Bucket,
		base:   s3PublicBase(cfg.PublicBaseURL, host, cfg.Bucket, cfg.ForcePathStyle),
	}, nil
}

// s3Endpoint accepts either a bare host or a URL; a URL scheme overrides useSSL.
func s3Endpoint(raw string, useSSL bool) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return strings.TrimRight(raw, "/"), useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("s3 storage: endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("s3 storage: endpoint %q has no host", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

// s3PublicBase prefers a CDN base URL; otherwise objects are addressed on the
// endpoint, path-style or virtual-host style.
func s3PublicBase(publicBaseURL, host, bucket string, pathStyle bool) string {
	if base := strings.TrimRight(publicBaseURL, "/"); base != "" {
		if !strings.Contains(base, "://") {
			base = "https://" + base
		}
		return base
	}
	if pathStyle {
		return "https://" + host + "/" + bucket
	}
	return "https://" + bucket + "." + host
}

// mediaPutOptions sets headers by media kind. Media keys carry a fresh UUID, so
// objects never change in place; avatars still get a shorter lifetime because
// clients cache profile payloads that point at them.
func mediaPutOptions(key, contentType string) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: contentType}
	kind, ok := MediaKindOfKey(key)
	if !ok {
		if opts.ContentType == "" {
			opts.ContentType = "application/octet-stream"
		}
		opts.CacheControl = "public, max-age=3600"
		return opts
	}
	if opts.ContentType == "" {
		opts.ContentType = "image/jpeg"
	}
	opts.ContentDisposition = "inline"
	opts.UserMetadata = map[string]string{"media-kind": string(kind)}
	switch kind {
	case MediaAvatar:
		opts.CacheControl = "public, max-age=604800"
	default:
		opts.CacheControl = "public, max-age=31536000, immutable"
	}
	return opts
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (s *s3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	ctx, cancel := withDefaultTimeout(ctx, s3PutTimeout)
	defer cancel()

	size := int64(-1)
	if br, ok := r.(*bytes.Reader); ok {
		size = int64(br.Len())
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, mediaPutOptions(key, contentType)); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	ctx, cancel := withDefaultTimeout(ctx, s3DeleteTimeout)
	defer cancel()

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}

func (s *s3Storage) PublicURL(key string) string {
	return s.base + "/" + strings.TrimPrefix(key, "/")
}

func (s *s3Storage) IsLocal() bool { return false }
