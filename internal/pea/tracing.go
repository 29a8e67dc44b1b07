package pea

import (
	"context"

	"github.com/oriys/peapod/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startSpan wraps observability.StartSpan with a nil-tracer guard: unit
// tests construct a pipeline without ever calling observability.Init,
// and the global tracer stays a zero-value interface until Init runs
// (cmd/pea always calls it, the same as cmd/comet/daemon.go), so this
// falls back to the ambient no-op span from the bare context instead of
// dereferencing a nil trace.Tracer.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if observability.Tracer() == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return observability.StartSpan(ctx, name, attrs...)
}
