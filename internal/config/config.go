package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
)

// Config represents the build configuration
type Config struct {
	Entry     string                     `mapstructure:"entry" yaml:"entry"`
	Output    OutputConfig               `mapstructure:"output" yaml:"output"`
	Build     BuildConfig                `mapstructure:"build" yaml:"build"`
	Transform TransformConfig            `mapstructure:"transform" yaml:"transform"`
	Storage   StorageConfig              `mapstructure:"storage" yaml:"storage"`
	Tracing   observability.TracerConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics   MetricsConfig              `mapstructure:"metrics" yaml:"metrics"`
	Debug     bool                       `mapstructure:"debug" yaml:"debug"`

	// ConfigFile is the file the configuration was read from, if any
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// OutputConfig controls where and how the bundle is written
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Filename  string `mapstructure:"filename" yaml:"filename"`
	Format    string `mapstructure:"format" yaml:"format"` // iife or cjs
	Minify    bool   `mapstructure:"minify" yaml:"minify"`
}

// BuildConfig contains graph building settings
type BuildConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// TransformConfig contains code transformer settings
type TransformConfig struct {
	Target string `mapstructure:"target" yaml:"target"`
}

// StorageConfig contains output sink settings
type StorageConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"` // local or s3
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl" yaml:"s3_use_ssl"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	// File receives a Prometheus textfile after each build when set
	File string `mapstructure:"file" yaml:"file"`
}

// Load reads configuration from path, or from fluxpack.yaml in the usual
// locations when path is empty, layered over defaults and FLUXPACK_*
// environment variables.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fluxpack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Enable environment variable support with underscore replacer
	v.AutomaticEnv()
	v.SetEnvPrefix("FLUXPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, builderr.New(builderr.KindConfig, path, fmt.Errorf("error reading config file: %w", err))
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, builderr.New(builderr.KindConfig, v.ConfigFileUsed(), fmt.Errorf("unable to decode config: %w", err))
	}
	config.ConfigFile = v.ConfigFileUsed()
	config.Storage.Provider = strings.ToLower(strings.TrimSpace(config.Storage.Provider))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Entry: "./src/index.js",
		Output: OutputConfig{
			Directory: "./dist",
			Filename:  "main.js",
			Format:    "iife",
		},
		Build:     BuildConfig{Concurrency: 1},
		Transform: TransformConfig{Target: "es2017"},
		Storage:   StorageConfig{Provider: "local", S3UseSSL: true},
		Tracing:   observability.DefaultTracerConfig(),
	}
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults registers every key so environment overrides work for all of them
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("entry", d.Entry)

	// Output defaults
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("output.filename", d.Output.Filename)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.minify", d.Output.Minify)

	v.SetDefault("build.concurrency", d.Build.Concurrency)
	v.SetDefault("transform.target", d.Transform.Target)

	// Storage defaults
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_use_ssl", d.Storage.S3UseSSL)

	// Tracing defaults
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	v.SetDefault("metrics.file", "")
	v.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Entry) == "" {
		return builderr.Config("entry cannot be empty")
	}

	if err := c.Output.Validate(); err != nil {
		return err
	}

	if c.Build.Concurrency < 0 {
		return builderr.Config("build.concurrency cannot be negative")
	}

	if c.Storage.Provider != "local" && c.Storage.Provider != "s3" {
		return builderr.Config("storage provider must be 'local' or 's3'")
	}

	if c.Storage.Provider == "s3" {
		if c.Storage.S3Endpoint == "" || c.Storage.S3AccessKey == "" ||
			c.Storage.S3SecretKey == "" || c.Storage.S3Bucket == "" {
			return builderr.Config("S3 configuration is incomplete")
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return builderr.Config("tracing.sample_rate must be between 0 and 1")
	}

	return nil
}

// Validate validates output settings
func (oc *OutputConfig) Validate() error {
	if strings.TrimSpace(oc.Filename) == "" {
		return builderr.Config("output.filename cannot be empty")
	}
	if strings.ContainsAny(oc.Filename, `/\`) {
		return builderr.Config("output.filename must not contain path separators")
	}

	validFormats := []string{"iife", "cjs"}
	for _, f := range validFormats {
		if oc.Format == f {
			return nil
		}
	}
	return builderr.Config(fmt.Sprintf("invalid output format: %s (must be one of: %v)", oc.Format, validFormats))
}
