package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
)

// S3Sink writes bundles to S3-compatible storage (AWS S3, MinIO, etc.)
type S3Sink struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Sink creates a sink writing into bucket
// Works with AWS S3, MinIO, Wasabi, DigitalOcean Spaces, and other S3-compatible services
func NewS3Sink(endpoint, accessKey, secretKey, region, bucket string, useSSL bool) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Str("region", region).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("S3-compatible storage initialized")

	return &S3Sink{
		client: client,
		bucket: bucket,
		region: region,
	}, nil
}

// Name returns the provider name
func (s3 *S3Sink) Name() string {
	return "s3"
}

// objectKey joins dir and name into a bucket key. Local-looking prefixes
// such as "./dist" become "dist".
func objectKey(dir, name string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	key := path.Join(dir, name)
	key = strings.TrimPrefix(key, "/")
	for strings.HasPrefix(key, "../") {
		key = strings.TrimPrefix(key, "../")
	}
	return key
}

// Write uploads data under dir/name in the configured bucket
func (s3 *S3Sink) Write(ctx context.Context, dir, name string, data []byte) (obj *Object, err error) {
	key := objectKey(dir, name)
	location := fmt.Sprintf("s3://%s/%s", s3.bucket, key)

	ctx, span := observability.StartStorageSpan(ctx, s3.Name(), key)
	defer func() { observability.EndSpan(span, err) }()

	info, err := s3.client.PutObject(ctx, s3.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return nil, builderr.OutputWrite(location, fmt.Errorf("failed to upload to S3: %w", err))
	}

	log.Debug().
		Str("bucket", s3.bucket).
		Str("key", key).
		Int64("size", info.Size).
		Msg("Bundle uploaded to S3")

	return &Object{
		Key:          key,
		Bucket:       s3.bucket,
		Location:     location,
		Size:         info.Size,
		ContentType:  ContentType,
		LastModified: time.Now(),
		ETag:         info.ETag,
	}, nil
}
