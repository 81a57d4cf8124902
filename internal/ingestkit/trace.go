package ingestkit

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var ingestTracer = otel.Tracer("nbavault/internal/ingestkit")
var ingestNoopSpan = trace.SpanFromContext(context.Background())

func startIngestSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" {
		return ctx, ingestNoopSpan
	}
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, ingestNoopSpan
	}
	return ingestTracer.Start(ctx, name)
}
