// Package tracing initialises OpenTelemetry with an OTLP HTTP exporter.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Options configures Init.
type Options struct {
	// Endpoint is the OTLP HTTP collector (host:port). Empty disables tracing.
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Init installs a global tracer provider exporting to opts.Endpoint. With
// no endpoint it does nothing and returns a no-op shutdown.
func Init(ctx context.Context, optFns ...func(o *Options)) (ShutdownFunc, error) {
	opts := Options{
		ServiceName: "writer-multi-agent",
		Insecure:    true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
