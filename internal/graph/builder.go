package graph

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fluxbase-eu/fluxpack/internal/asset"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
	"github.com/fluxbase-eu/fluxpack/internal/resolver"
)

// Extractor produces the asset for one file
type Extractor interface {
	Extract(ctx context.Context, path resolver.AbsolutePath) (*asset.Asset, error)
}

// Builder performs the breadth-first discovery of a module graph
type Builder struct {
	extractor   Extractor
	concurrency int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Option configures a Builder
type Option func(*Builder)

// WithConcurrency extracts up to n files of the same BFS level at once.
// Ids are the same as with sequential extraction.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the logger used for discovery messages
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics records discovery and extraction metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder creates a graph builder
func NewBuilder(extractor Extractor, opts ...Option) *Builder {
	b := &Builder{
		extractor:   extractor,
		concurrency: 1,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// state is owned by a single Build call
type state struct {
	discovered map[resolver.AbsolutePath]int
	queue      []resolver.AbsolutePath
	assets     []*asset.Asset
	nextID     int
}

// discover returns the id of p, allocating the next id and queueing p the
// first time it is seen. Ids are handed out here, not at extraction, so a
// mapping can point at a module that has not been extracted yet.
func (s *state) discover(p resolver.AbsolutePath) (int, bool) {
	if id, ok := s.discovered[p]; ok {
		return id, false
	}
	id := s.nextID
	s.nextID++
	s.discovered[p] = id
	s.queue = append(s.queue, p)
	return id, true
}

// Build discovers every module reachable from entry. Any extraction failure
// aborts the build and no graph is returned.
func (b *Builder) Build(ctx context.Context, entry resolver.AbsolutePath) (g *Graph, err error) {
	ctx, span := observability.StartStageSpan(ctx, "graph.build",
		attribute.String("graph.entry", entry.String()),
		attribute.Int("graph.concurrency", b.concurrency),
	)
	defer func() { observability.EndSpan(span, err) }()

	s := &state{discovered: make(map[resolver.AbsolutePath]int)}
	s.discover(entry)

	if b.concurrency > 1 {
		err = b.buildLevels(ctx, s)
	} else {
		err = b.buildSequential(ctx, s)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("graph.assets", len(s.assets)))
	return newGraph(s.assets), nil
}

func (b *Builder) buildSequential(ctx context.Context, s *state) error {
	for len(s.queue) > 0 {
		path := s.queue[0]
		s.queue = s.queue[1:]

		a, err := b.extract(ctx, path)
		if err != nil {
			return err
		}
		b.link(s, path, a)
	}
	return nil
}

// buildLevels extracts one BFS frontier concurrently, then links the results
// serially in frontier order. Discovery only happens while linking, which
// keeps check-and-mark atomic and ids identical to the sequential order.
func (b *Builder) buildLevels(ctx context.Context, s *state) error {
	for len(s.queue) > 0 {
		frontier := s.queue
		s.queue = nil

		results := make([]*asset.Asset, len(frontier))
		errs := make([]error, len(frontier))

		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(b.concurrency)
		for i, path := range frontier {
			group.Go(func() error {
				results[i], errs[i] = b.extract(gctx, path)
				return errs[i]
			})
		}
		groupErr := group.Wait()

		if err := firstError(errs); err != nil {
			return err
		}
		if groupErr != nil {
			return groupErr
		}

		for i, path := range frontier {
			b.link(s, path, results[i])
		}
	}
	return nil
}

// firstError returns the earliest error in frontier order, skipping
// cancellations caused by a sibling failure.
func firstError(errs []error) error {
	var cancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if cancelled == nil {
				cancelled = err
			}
			continue
		}
		return err
	}
	return cancelled
}

func (b *Builder) extract(ctx context.Context, path resolver.AbsolutePath) (*asset.Asset, error) {
	ctx, span := observability.StartStageSpan(ctx, "asset.extract", attribute.String("asset.path", path.String()))
	start := time.Now()

	a, err := b.extractor.Extract(ctx, path)

	if b.metrics != nil {
		b.metrics.RecordExtract(time.Since(start))
	}
	observability.EndSpan(span, err)
	return a, err
}

// link assigns the pre-allocated id to a and fills its mapping, discovering
// new dependencies along the way.
func (b *Builder) link(s *state, path resolver.AbsolutePath, a *asset.Asset) {
	a.ID = s.discovered[path]
	if a.SpecifierToID == nil {
		a.SpecifierToID = make(map[string]int, len(a.Dependencies))
	}

	for _, dep := range a.Dependencies {
		id, isNew := s.discover(dep.Path)
		if isNew {
			b.logger.Debug().
				Int("id", id).
				Str("path", dep.Path.String()).
				Int("importer", a.ID).
				Msg("Discovered module")
		}
		a.SpecifierToID[dep.Specifier] = id
	}

	if b.metrics != nil {
		b.metrics.RecordAssetDiscovered()
	}
	s.assets = append(s.assets, a)
}
