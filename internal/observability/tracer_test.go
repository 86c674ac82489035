package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// =============================================================================
// TracerConfig Tests
// =============================================================================

func TestDefaultTracerConfig(t *testing.T) {
	t.Run("returns expected defaults", func(t *testing.T) {
		cfg := DefaultTracerConfig()

		assert.False(t, cfg.Enabled)
		assert.Equal(t, "localhost:4317", cfg.Endpoint)
		assert.Equal(t, "fluxpack", cfg.ServiceName)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, 1.0, cfg.SampleRate)
		assert.True(t, cfg.Insecure)
	})

	t.Run("returns new instance each time", func(t *testing.T) {
		cfg1 := DefaultTracerConfig()
		cfg2 := DefaultTracerConfig()

		cfg1.ServiceName = "modified"
		assert.Equal(t, "fluxpack", cfg2.ServiceName)
	})
}

// =============================================================================
// Tracer Tests
// =============================================================================

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{Enabled: false}, "dev")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	assert.False(t, tracer.IsEnabled())
	assert.NotNil(t, tracer.tracer)
	assert.Nil(t, tracer.provider)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_StartSpan(t *testing.T) {
	tracer := &Tracer{tracer: noop.NewTracerProvider().Tracer("test")}

	ctx, span := tracer.StartSpan(context.Background(), "bundle.build")
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	span.End()
}

// =============================================================================
// Span Helper Tests
// =============================================================================

func TestStageSpans_Recorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := &Tracer{tracer: provider.Tracer("test"), provider: provider, enabled: true}

	ctx, root := tracer.StartSpan(context.Background(), "bundle.build")
	SetSpanAttributes(ctx, attribute.Int("bundle.assets", 3))
	RecordError(ctx, errors.New("stage failed"))
	assert.NotEmpty(t, ExtractTraceID(ctx))
	root.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "bundle.build", spans[0].Name())
	assert.Len(t, spans[0].Events(), 1)
	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
		RecordError(ctx, nil)
		SetSpanAttributes(ctx, attribute.String("k", "v"))
	})
	assert.Empty(t, ExtractTraceID(ctx))

	_, span := StartStageSpan(ctx, "graph.build", attribute.String("entry", "/src/index.js"))
	assert.NotPanics(t, func() { EndSpan(span, errors.New("x")) })

	_, span = StartStorageSpan(ctx, "local", "dist/main.js")
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}
