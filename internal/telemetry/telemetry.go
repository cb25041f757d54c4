// Package telemetry sets up OpenTelemetry tracing with an OTLP/HTTP exporter.
// Spans come from the HTTP router (inbound) and from the catalog client and
// its transport (outbound).
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

type ShutdownFunc func(context.Context) error

// Init installs a batching tracer provider exporting to endpoint. An empty
// endpoint leaves the global no-op provider in place.
func Init(ctx context.Context, serviceName, serviceVersion, endpoint string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

type target struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint splits an OTLP URL such as http://localhost:4318/otlp into
// the host and the trace path the exporter expects.
func parseEndpoint(endpoint string) target {
	var t target
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		t.insecure = true
	}

	host, base, _ := strings.Cut(endpoint, "/")
	t.host = host

	base = strings.TrimSuffix(strings.TrimSuffix("/"+base, "/"), "/v1/traces")
	t.path = base + "/v1/traces"
	return t
}

func exporterOptions(endpoint string) []otlptracehttp.Option {
	t := parseEndpoint(endpoint)
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(t.host),
		otlptracehttp.WithURLPath(t.path),
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
