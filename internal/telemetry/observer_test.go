package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestToolObserverRecordsMetricsAndSpans(t *testing.T) {
	reader, mp := newTestMeter()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	observer, err := NewToolObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewToolObserver() error = %v", err)
	}

	ctx, span := observer.Start(context.Background(), "get-clockify-user", "inv-1")
	observer.Finish(ctx, span, Invocation{ToolName: "get-clockify-user", InvocationID: "inv-1", Duration: 15 * time.Millisecond, Success: true})

	ctx, span = observer.Start(context.Background(), "list-clockify-projects", "inv-2")
	observer.Finish(ctx, span, Invocation{ToolName: "list-clockify-projects", InvocationID: "inv-2", Duration: time.Millisecond, ErrorKind: "upstream"})

	rm := collectMetrics(t, reader)

	invocations := findMetric(rm, "clockify_mcp.tool.invocations")
	if invocations == nil {
		t.Fatal("clockify_mcp.tool.invocations metric not found")
	}
	if got := sumValue(t, invocations); got != 2 {
		t.Fatalf("invocations = %d, want 2", got)
	}

	failures := findMetric(rm, "clockify_mcp.tool.failures")
	if failures == nil {
		t.Fatal("clockify_mcp.tool.failures metric not found")
	}
	if got := sumValue(t, failures); got != 1 {
		t.Fatalf("failures = %d, want 1", got)
	}

	latency := findMetric(rm, "clockify_mcp.tool.latency")
	if latency == nil {
		t.Fatal("clockify_mcp.tool.latency metric not found")
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("clockify_mcp.tool.latency type = %T, want Histogram[float64]", latency.Data)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "tool.invoke" || spans[0].Status().Code != codes.Ok {
		t.Fatalf("unexpected first span %q status %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "upstream" {
		t.Fatalf("unexpected second span status %v", spans[1].Status())
	}
}

func TestNilToolObserverIsNoop(t *testing.T) {
	var observer *ToolObserver
	ctx, span := observer.Start(context.Background(), "x", "y")
	if span != nil {
		t.Fatalf("expected nil span from nil observer")
	}
	observer.Finish(ctx, span, Invocation{ToolName: "x"})
}

func TestSetupWithoutEndpointUsesGlobalProviders(t *testing.T) {
	called := false
	prev := newExporter
	newExporter = func(context.Context, string) (sdktrace.SpanExporter, error) {
		called = true
		return nil, errors.New("should not be called")
	}
	t.Cleanup(func() { newExporter = prev })

	p, err := Setup(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if called {
		t.Fatalf("exporter must not be created without an endpoint")
	}
	if p.Tracer == nil || p.Observer == nil {
		t.Fatalf("expected tracer and observer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupReturnsExporterError(t *testing.T) {
	prev := newExporter
	newExporter = func(context.Context, string) (sdktrace.SpanExporter, error) {
		return nil, errors.New("bad endpoint")
	}
	t.Cleanup(func() { newExporter = prev })

	if _, err := Setup(context.Background(), Options{OTLPEndpoint: "http://collector:4318"}); err == nil {
		t.Fatalf("expected exporter error")
	}
}

func TestSetupWithEndpointInstallsProvider(t *testing.T) {
	prev := newExporter
	newExporter = func(context.Context, string) (sdktrace.SpanExporter, error) {
		return tracetest.NewInMemoryExporter(), nil
	}
	t.Cleanup(func() { newExporter = prev })

	p, err := Setup(context.Background(), Options{OTLPEndpoint: "http://collector:4318", ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected sdk tracer provider to be installed globally, got %T", otel.GetTracerProvider())
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
