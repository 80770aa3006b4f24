// Package telemetry records OpenTelemetry signals for tool invocations.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Invocation describes one finished tool call.
type Invocation struct {
	ToolName     string
	InvocationID string
	Duration     time.Duration
	Success      bool
	ErrorKind    string
}

// ToolObserver counts invocations and failures, records latency, and wraps
// each call in a span. A nil *ToolObserver is valid and records nothing.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		"clockify_mcp.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"clockify_mcp.tool.failures",
		metric.WithDescription("Number of tool invocations that returned an error result"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"clockify_mcp.tool.latency",
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// Start opens the invocation span. Gateway spans started from the returned
// context become its children. The returned span is nil when o is nil.
func (o *ToolObserver) Start(ctx context.Context, toolName, invocationID string) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("invocation_id", invocationID),
	))
}

// Finish records metrics for inv and ends span.
func (o *ToolObserver) Finish(ctx context.Context, span trace.Span, inv Invocation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", inv.ToolName),
		attribute.Bool("success", inv.Success),
	}
	if inv.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", inv.ErrorKind))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	if !inv.Success {
		o.failures.Add(ctx, 1, options)
	}
	o.latency.Record(ctx, inv.Duration.Seconds(), options)

	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
	if inv.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, inv.ErrorKind)
	}
	span.End()
}
