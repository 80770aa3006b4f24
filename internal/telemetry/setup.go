package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/alanbuscaglia/clockify-mcp"

// Options selects where spans go. With no OTLPEndpoint the global
// (no-op unless replaced) providers are used and nothing is exported.
type Options struct {
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// Providers holds the tracer and observer built by Setup.
type Providers struct {
	Tracer   trace.Tracer
	Observer *ToolObserver
	Shutdown func(context.Context) error
}

var newExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
}

func Setup(ctx context.Context, opts Options) (*Providers, error) {
	shutdown := func(context.Context) error { return nil }

	if endpoint := strings.TrimSpace(opts.OTLPEndpoint); endpoint != "" {
		exporter, err := newExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
		}
		serviceName := opts.ServiceName
		if serviceName == "" {
			serviceName = "clockify-mcp"
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", opts.ServiceVersion),
			)),
		)
		otel.SetTracerProvider(tp)
		shutdown = tp.Shutdown
	}

	tracer := otel.Tracer(instrumentationName)
	observer, err := NewToolObserver(otel.Meter(instrumentationName), tracer)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create tool observer: %w", err)
	}

	return &Providers{Tracer: tracer, Observer: observer, Shutdown: shutdown}, nil
}
