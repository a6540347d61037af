// Package tracing sets up the OpenTelemetry tracer provider for a kvenv run.
package tracing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kvenv/kvenv/env"
	"github.com/kvenv/kvenv/logger"
	"github.com/kvenv/kvenv/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	BackendNone          = ""
	BackendOpenTelemetry = "opentelemetry"

	DefaultServiceName = "kvenv"
)

// ValidBackends is the set of accepted values for the tracing backend.
var ValidBackends = map[string]bool{
	BackendNone:          true,
	BackendOpenTelemetry: true,
}

// Config describes how to trace a run.
type Config struct {
	Backend     string
	ServiceName string

	// RootSpanName names the span that covers the whole run.
	RootSpanName string

	// Env is used to read the OTLP protocol and to describe the GitHub
	// Actions run in the trace resource.
	Env *env.Environment

	// Exporter overrides the OTLP exporter.
	Exporter sdktrace.SpanExporter
}

// Stopper ends the root span and flushes any buffered spans.
type Stopper func()

func noopStopper() {}

// Start installs a tracer provider for conf.Backend and starts the root span.
// With no backend, ctx is returned unchanged and the global no-op provider
// stays in place. Exporter setup failures are logged and tracing is disabled,
// so a broken collector never fails the run.
func Start(ctx context.Context, l logger.Logger, conf Config) (context.Context, Stopper, error) {
	if !ValidBackends[conf.Backend] {
		return ctx, noopStopper, fmt.Errorf("invalid tracing backend %q", conf.Backend)
	}
	if conf.Backend == BackendNone {
		return ctx, noopStopper, nil
	}

	environ := conf.Env
	if environ == nil {
		environ = env.New()
	}

	exporter := conf.Exporter
	if exporter == nil {
		var err error
		exporter, err = newExporter(ctx, environ.GetString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
		if err != nil {
			l.Error("Error creating OTLP trace exporter: %v. Disabling tracing.", err)
			return ctx, noopStopper, nil
		}
	}

	serviceName := conf.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	attributes := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version.Version()),
		semconv.DeploymentEnvironmentKey.String("ci"),
	}
	attributes = append(attributes, GitHubAttributes(environ)...)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attributes...)),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// A traceparent from the surrounding workflow links this run to it.
	if tp, ok := environ.Get("TRACEPARENT"); ok && tp != "" {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{"traceparent": tp})
	}

	tracer := tracerProvider.Tracer(
		"kvenv",
		trace.WithInstrumentationVersion(version.Version()),
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	rootSpanName := conf.RootSpanName
	if rootSpanName == "" {
		rootSpanName = "kvenv"
	}
	ctx, span := tracer.Start(ctx, rootSpanName)

	stop := func() {
		span.End()
		ctx := context.Background()
		if err := tracerProvider.ForceFlush(ctx); err != nil {
			l.Warn("Flushing traces: %v", err)
		}
		_ = tracerProvider.Shutdown(ctx)
	}

	return ctx, stop, nil
}

func newExporter(ctx context.Context, protocol string) (sdktrace.SpanExporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf", "http":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// GitHubAttributes describes the GitHub Actions run found in environ.
// Variables that are unset are left out.
func GitHubAttributes(environ *env.Environment) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	for _, name := range []string{
		"GITHUB_REPOSITORY",
		"GITHUB_WORKFLOW",
		"GITHUB_JOB",
		"GITHUB_RUN_ID",
		"GITHUB_REF",
		"GITHUB_SHA",
		"GITHUB_ACTOR",
		"RUNNER_OS",
		"RUNNER_NAME",
	} {
		if v, ok := environ.Get(name); ok && v != "" {
			attrs = append(attrs, attribute.String(attributeKey(name), v))
		}
	}

	for _, name := range []string{"GITHUB_RUN_NUMBER", "GITHUB_RUN_ATTEMPT"} {
		v, ok := environ.Get(name)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			attrs = append(attrs, attribute.Int(attributeKey(name), n))
		}
	}

	return attrs
}

// attributeKey turns GITHUB_RUN_ID into github.run_id.
func attributeKey(name string) string {
	prefix, rest, _ := strings.Cut(strings.ToLower(name), "_")
	return prefix + "." + rest
}
