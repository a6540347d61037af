package tracing

import (
	"context"
	"testing"

	"github.com/kvenv/kvenv/env"
	"github.com/kvenv/kvenv/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestStartWithoutBackend(t *testing.T) {
	ctx := context.Background()

	got, stop, err := Start(ctx, logger.Discard, Config{})
	require.NoError(t, err)
	defer stop()

	assert.Equal(t, ctx, got)
}

func TestStartInvalidBackend(t *testing.T) {
	_, stop, err := Start(context.Background(), logger.Discard, Config{Backend: "datadog"})
	defer stop()

	assert.EqualError(t, err, `invalid tracing backend "datadog"`)
}

func TestStartUnsupportedProtocolDisablesTracing(t *testing.T) {
	l := logger.NewBuffer()
	ctx := context.Background()

	got, stop, err := Start(ctx, l, Config{
		Backend: BackendOpenTelemetry,
		Env:     env.FromMap(map[string]string{"OTEL_EXPORTER_OTLP_PROTOCOL": "carrier-pigeon"}),
	})
	require.NoError(t, err)
	defer stop()

	assert.Equal(t, ctx, got)
	assert.Equal(t, []string{`[error] Error creating OTLP trace exporter: unsupported OTLP protocol "carrier-pigeon". Disabling tracing.`}, l.Messages)
}

func TestStartOpenTelemetry(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	exporter := tracetest.NewInMemoryExporter()
	environ := env.FromMap(map[string]string{
		"GITHUB_REPOSITORY": "octo-org/octo-repo",
		"GITHUB_RUN_ID":     "1658821493",
		"GITHUB_RUN_NUMBER": "42",
		"TRACEPARENT":       "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})

	ctx, stop, err := Start(context.Background(), logger.Discard, Config{
		Backend:      BackendOpenTelemetry,
		ServiceName:  "kvenv-test",
		RootSpanName: "kvenv.export",
		Env:          environ,
		Exporter:     exporter,
	})
	require.NoError(t, err)

	_, child := otel.Tracer("test").Start(ctx, "child")
	child.End()
	stop()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "child", spans[0].Name)
	root := spans[1]
	assert.Equal(t, "kvenv.export", root.Name)
	assert.Equal(t, root.SpanContext.SpanID(), spans[0].Parent.SpanID())

	wantTraceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	assert.Equal(t, wantTraceID, root.SpanContext.TraceID())

	attrs := root.Resource.Attributes()
	assert.Contains(t, attrs, attribute.String("service.name", "kvenv-test"))
	assert.Contains(t, attrs, attribute.String("github.repository", "octo-org/octo-repo"))
	assert.Contains(t, attrs, attribute.Int("github.run_number", 42))
}

func TestGitHubAttributes(t *testing.T) {
	t.Parallel()

	environ := env.FromMap(map[string]string{
		"GITHUB_WORKFLOW":    "deploy",
		"GITHUB_RUN_ID":      "1658821493",
		"GITHUB_RUN_ATTEMPT": "2",
		"GITHUB_RUN_NUMBER":  "not-a-number",
		"GITHUB_SHA":         "",
		"RUNNER_OS":          "Linux",
	})

	want := []attribute.KeyValue{
		attribute.String("github.workflow", "deploy"),
		attribute.String("github.run_id", "1658821493"),
		attribute.String("runner.os", "Linux"),
		attribute.Int("github.run_attempt", 2),
	}
	assert.Equal(t, want, GitHubAttributes(environ))
}
