// Package tracing installs the OpenTelemetry SDK tracer provider and the HTTP
// middleware that starts a server span per request. Finished spans are written
// to the structured log at debug level.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "loankyc"

// NewProvider builds a tracer provider that samples sampleRatio of new traces,
// follows the sampling decision of incoming parents, and exports to logger.
func NewProvider(logger *slog.Logger, sampleRatio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithBatcher(NewLogExporter(logger)),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
}

// LogExporter writes each finished span as one debug log record.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"span", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status", span.Status().Code.String(),
		}
		if parent := span.Parent(); parent.IsValid() {
			attrs = append(attrs, "parent_span_id", parent.SpanID().String())
		}
		if desc := span.Status().Description; desc != "" {
			attrs = append(attrs, "status_description", desc)
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, "attr."+string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span finished", attrs...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// Shutdown flushes pending spans, bounded by timeout.
func Shutdown(tp *sdktrace.TracerProvider, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return tp.Shutdown(ctx)
}
