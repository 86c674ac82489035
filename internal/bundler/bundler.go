// Package bundler wires extraction, graph building, emission and output into
// the single build operation used by the CLI.
package bundler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/fluxpack/internal/asset"
	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/config"
	"github.com/fluxbase-eu/fluxpack/internal/emitter"
	"github.com/fluxbase-eu/fluxpack/internal/graph"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
	"github.com/fluxbase-eu/fluxpack/internal/parser"
	"github.com/fluxbase-eu/fluxpack/internal/resolver"
	"github.com/fluxbase-eu/fluxpack/internal/storage"
	"github.com/fluxbase-eu/fluxpack/internal/transform"
)

// Destination names the output directory and file of a build
type Destination struct {
	Directory string `json:"directory" yaml:"directory"`
	Filename  string `json:"filename" yaml:"filename"`
}

// Result describes one build
type Result struct {
	BuildID string                `json:"build_id" yaml:"build_id"`
	Entry   resolver.AbsolutePath `json:"entry" yaml:"entry"`
	Format  string                `json:"format" yaml:"format"`
	Graph   *graph.Graph          `json:"-" yaml:"-"`
	Code    string                `json:"-" yaml:"-"`
	Object  *storage.Object       `json:"object,omitempty" yaml:"object,omitempty"`

	GraphDuration time.Duration `json:"graph_duration" yaml:"graph_duration"`
	EmitDuration  time.Duration `json:"emit_duration" yaml:"emit_duration"`
	WriteDuration time.Duration `json:"write_duration,omitempty" yaml:"write_duration,omitempty"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
}

// Bundler runs builds with one configuration
type Bundler struct {
	cfg     *config.Config
	fs      afero.Fs
	sink    storage.Sink
	metrics *observability.Metrics
	logger  zerolog.Logger

	builder *graph.Builder
	emitter *emitter.Emitter
}

// Option configures a Bundler
type Option func(*Bundler)

// WithFs reads sources from fs instead of the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(b *Bundler) {
		b.fs = fs
	}
}

// WithSink writes bundles through sink instead of the configured provider
func WithSink(sink storage.Sink) Option {
	return func(b *Bundler) {
		b.sink = sink
	}
}

// WithMetrics records build metrics into m
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bundler) {
		b.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bundler) {
		b.logger = logger
	}
}

// New wires a bundler from cfg
func New(cfg *config.Config, opts ...Option) (*Bundler, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	b := &Bundler{
		cfg:    cfg,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.metrics == nil {
		b.metrics = observability.NewMetrics()
	}

	if err := cfg.Output.Validate(); err != nil {
		return nil, err
	}

	tr, err := transform.New(cfg.Transform.Target)
	if err != nil {
		return nil, builderr.Config(err.Error())
	}
	extractor := asset.NewExtractor(b.fs, parser.New(), tr)

	b.builder = graph.NewBuilder(extractor,
		graph.WithConcurrency(cfg.Build.Concurrency),
		graph.WithLogger(b.logger),
		graph.WithMetrics(b.metrics),
	)

	b.emitter, err = emitter.New(
		emitter.WithFormat(cfg.Output.Format),
		emitter.WithMinify(cfg.Output.Minify),
	)
	if err != nil {
		return nil, builderr.Config(err.Error())
	}

	if b.sink == nil {
		b.sink, err = storage.NewSink(&cfg.Storage, b.fs)
		if err != nil {
			return nil, builderr.Config(err.Error())
		}
	}

	return b, nil
}

// Metrics returns the metrics the bundler records into
func (b *Bundler) Metrics() *observability.Metrics {
	return b.metrics
}

// Destination returns the configured output location
func (b *Bundler) Destination() Destination {
	return Destination{Directory: b.cfg.Output.Directory, Filename: b.cfg.Output.Filename}
}

// Bundle builds the graph for entry and emits the bundle without writing it
func (b *Bundler) Bundle(ctx context.Context, entry string) (*Result, error) {
	result := &Result{BuildID: uuid.New().String(), Format: b.emitter.Format()}
	return result, b.bundle(ctx, entry, result)
}

func (b *Bundler) bundle(ctx context.Context, entry string, result *Result) error {
	entryPath, err := resolver.Canonicalize(entry)
	if err != nil {
		return builderr.UnreadableFile(entry, err)
	}
	result.Entry = entryPath

	start := time.Now()
	g, err := b.builder.Build(ctx, entryPath)
	if err != nil {
		return err
	}
	result.Graph = g
	result.GraphDuration = time.Since(start)

	b.logger.Debug().
		Str("build_id", result.BuildID).
		Int("assets", g.Len()).
		Dur("duration", result.GraphDuration).
		Msg("Module graph built")

	start = time.Now()
	code, err := b.emitter.Emit(ctx, g)
	if err != nil {
		return err
	}
	result.Code = code
	result.EmitDuration = time.Since(start)
	b.metrics.SetBundleSize(len(code))

	return nil
}

// BuildBundle runs a full build of entry and writes it to dest. Nothing is
// written when any stage fails, and the first failure is returned as is.
func (b *Bundler) BuildBundle(ctx context.Context, entry string, dest Destination) (result *Result, err error) {
	start := time.Now()
	result = &Result{BuildID: uuid.New().String(), Format: b.emitter.Format()}

	ctx, span := observability.StartStageSpan(ctx, "bundle.build",
		attribute.String("bundle.build_id", result.BuildID),
		attribute.String("bundle.entry", entry),
	)
	defer func() {
		result.Duration = time.Since(start)
		b.metrics.RecordBuild(result.Duration, err)
		observability.EndSpan(span, err)
		b.writeMetricsFile()
		if err != nil {
			b.logger.Debug().Err(err).
				Str("build_id", result.BuildID).
				Str("trace_id", observability.ExtractTraceID(ctx)).
				Msg("Build failed")
			result = nil
		}
	}()

	if dest.Filename == "" {
		dest.Filename = b.cfg.Output.Filename
	}
	if dest.Directory == "" {
		dest.Directory = b.cfg.Output.Directory
	}

	b.logger.Info().
		Str("build_id", result.BuildID).
		Str("entry", entry).
		Str("format", result.Format).
		Msg("Build started")

	if err = b.bundle(ctx, entry, result); err != nil {
		return result, err
	}

	writeStart := time.Now()
	result.Object, err = b.sink.Write(ctx, dest.Directory, dest.Filename, []byte(result.Code))
	b.metrics.RecordStorageWrite(b.sink.Name(), err)
	if err != nil {
		return result, err
	}
	result.WriteDuration = time.Since(writeStart)

	observability.SetSpanAttributes(ctx,
		attribute.Int("bundle.assets", result.Graph.Len()),
		attribute.Int("bundle.bytes", len(result.Code)),
	)
	b.logger.Info().
		Str("build_id", result.BuildID).
		Int("assets", result.Graph.Len()).
		Int("bytes", len(result.Code)).
		Str("output", result.Object.Location).
		Dur("duration", time.Since(start)).
		Msg("Build finished")

	return result, nil
}

func (b *Bundler) writeMetricsFile() {
	if b.cfg.Metrics.File == "" {
		return
	}
	if err := b.metrics.WriteTextfile(b.cfg.Metrics.File); err != nil {
		b.logger.Warn().Err(err).Str("file", b.cfg.Metrics.File).Msg("Failed to write metrics file")
	}
}
