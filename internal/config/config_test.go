package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fluxpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a config file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "./src/index.js", cfg.Entry)
		assert.Equal(t, "./dist", cfg.Output.Directory)
		assert.Equal(t, "main.js", cfg.Output.Filename)
		assert.Equal(t, "iife", cfg.Output.Format)
		assert.False(t, cfg.Output.Minify)
		assert.Equal(t, 1, cfg.Build.Concurrency)
		assert.Equal(t, "es2017", cfg.Transform.Target)
		assert.Equal(t, "local", cfg.Storage.Provider)
		assert.True(t, cfg.Storage.S3UseSSL)
		assert.False(t, cfg.Tracing.Enabled)
		assert.Equal(t, "fluxpack", cfg.Tracing.ServiceName)
		assert.Empty(t, cfg.ConfigFile)
	})

	t.Run("explicit file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
entry: ./app/main.js
output:
  directory: ./build
  filename: app.js
  format: cjs
  minify: true
build:
  concurrency: 8
transform:
  target: es2020
metrics:
  file: ./metrics.prom
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "./app/main.js", cfg.Entry)
		assert.Equal(t, "./build", cfg.Output.Directory)
		assert.Equal(t, "app.js", cfg.Output.Filename)
		assert.Equal(t, "cjs", cfg.Output.Format)
		assert.True(t, cfg.Output.Minify)
		assert.Equal(t, 8, cfg.Build.Concurrency)
		assert.Equal(t, "es2020", cfg.Transform.Target)
		assert.Equal(t, "./metrics.prom", cfg.Metrics.File)
		assert.Equal(t, path, cfg.ConfigFile)
		assert.Equal(t, "local", cfg.Storage.Provider)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("FLUXPACK_OUTPUT_FILENAME", "from-env.js")
		t.Setenv("FLUXPACK_BUILD_CONCURRENCY", "3")
		path := writeConfig(t, "output:\n  filename: from-file.js\n")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "from-env.js", cfg.Output.Filename)
		assert.Equal(t, 3, cfg.Build.Concurrency)
	})

	t.Run("storage provider is case insensitive", func(t *testing.T) {
		path := writeConfig(t, `
storage:
  provider: " S3 "
  s3_endpoint: localhost:9000
  s3_access_key: minioadmin
  s3_secret_key: minioadmin
  s3_bucket: bundles
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "s3", cfg.Storage.Provider)
	})

	t.Run("missing explicit file is a config error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, builderr.ErrConfig)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := writeConfig(t, "output:\n  format: umd\n")

		_, err := Load(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, builderr.ErrConfig)
		assert.Contains(t, err.Error(), "invalid output format: umd")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty entry",
			mutate:  func(c *Config) { c.Entry = "  " },
			wantErr: true,
			errMsg:  "entry cannot be empty",
		},
		{
			name:    "empty filename",
			mutate:  func(c *Config) { c.Output.Filename = "" },
			wantErr: true,
			errMsg:  "output.filename cannot be empty",
		},
		{
			name:    "filename with separator",
			mutate:  func(c *Config) { c.Output.Filename = "sub/main.js" },
			wantErr: true,
			errMsg:  "output.filename must not contain path separators",
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Output.Format = "esm" },
			wantErr: true,
			errMsg:  "invalid output format: esm",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Build.Concurrency = -1 },
			wantErr: true,
			errMsg:  "build.concurrency cannot be negative",
		},
		{
			name:    "zero concurrency means sequential",
			mutate:  func(c *Config) { c.Build.Concurrency = 0 },
			wantErr: false,
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "gcs" },
			wantErr: true,
			errMsg:  "storage provider must be 'local' or 's3'",
		},
		{
			name: "incomplete s3",
			mutate: func(c *Config) {
				c.Storage.Provider = "s3"
				c.Storage.S3Endpoint = "localhost:9000"
			},
			wantErr: true,
			errMsg:  "S3 configuration is incomplete",
		},
		{
			name: "complete s3",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{
					Provider:    "s3",
					S3Endpoint:  "localhost:9000",
					S3AccessKey: "minioadmin",
					S3SecretKey: "minioadmin",
					S3Bucket:    "bundles",
				}
			},
			wantErr: false,
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: true,
			errMsg:  "tracing.sample_rate must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, builderr.ErrConfig)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
