package trace

import (
	"context"

	tracectx "github.com/arcade-daq/waveflow/pkg/trace/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GoWithContext launches fn on a new goroutine with the caller's span (from
// ctx, or from the caller goroutine's registered context) propagated, so
// log lines written inside fn carry the same trace/span IDs.
func GoWithContext(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	if span := trace.SpanFromContext(ctx); !span.SpanContext().IsValid() {
		pct := tracectx.GetContext()
		if pct != nil {
			if span := trace.SpanFromContext(pct); span.SpanContext().IsValid() {
				ctx = trace.ContextWithSpan(ctx, span)
			}
		}
	}
	go tracectx.RunWithContext(ctx, fn)
}

// ContextWithSpan ensures ctx carries a valid span, inheriting the calling
// goroutine's registered span when ctx has none of its own.
func ContextWithSpan(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracectx.ContextWithSpan(ctx)
}

// StartSpan starts a named span under whatever span ctx (or the calling
// goroutine's registered context) carries.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx = ContextWithSpan(ctx)
	tracer := otel.Tracer("github.com/arcade-daq/waveflow/pkg/trace")
	return tracer.Start(ctx, name, opts...)
}

// EndSpan ends span, recording err as the span status when non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
