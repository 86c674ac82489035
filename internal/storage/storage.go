package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/fluxpack/internal/config"
)

// Object represents a written bundle
type Object struct {
	Key          string    `json:"key" yaml:"key"`
	Bucket       string    `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Location     string    `json:"location" yaml:"location"`
	Size         int64     `json:"size" yaml:"size"`
	ContentType  string    `json:"content_type" yaml:"content_type"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// ContentType is the media type of emitted bundles
const ContentType = "application/javascript"

// Sink is where a finished bundle is written
type Sink interface {
	// Name returns the provider name
	Name() string

	// Write stores data as name inside dir, replacing any previous content
	Write(ctx context.Context, dir, name string, data []byte) (*Object, error)
}

// NewSink creates the sink selected by cfg. fs backs the local provider;
// nil means the OS filesystem.
func NewSink(cfg *config.StorageConfig, fs afero.Fs) (Sink, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		return NewLocalSink(fs), nil

	case "s3":
		// An explicit scheme on the endpoint wins over s3_use_ssl
		useSSL := cfg.S3UseSSL
		endpoint := cfg.S3Endpoint
		if strings.HasPrefix(endpoint, "http://") {
			useSSL = false
		} else if strings.HasPrefix(endpoint, "https://") {
			useSSL = true
		}
		endpoint = strings.TrimPrefix(endpoint, "https://")
		endpoint = strings.TrimPrefix(endpoint, "http://")

		// If no endpoint specified, use default S3 endpoint
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
			useSSL = true
		}

		sink, err := NewS3Sink(endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Region, cfg.S3Bucket, useSSL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return sink, nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
