package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// tracerName is the instrumentation scope name for jobqueue tracing.
const tracerName = "github.com/nnikos123/android-priority-jobqueue"

// Tracing returns middleware that wraps each attempt in an
// OpenTelemetry span. With no TracerProvider configured globally the
// noop tracer is used and this is a pass-through.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer, for injecting a specific TracerProvider in tests.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, h *jobqueue.JobHolder, next Handler) jobqueue.RunResult {
		ctx, span := tracer.Start(ctx, "jobqueue.run",
			trace.WithAttributes(
				attribute.String("jobqueue.job.id", h.ID()),
				attribute.Int("jobqueue.priority", h.Priority()),
				attribute.Int("jobqueue.run_count", h.RunCount()),
				attribute.String("jobqueue.group_id", h.GroupID()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res := next(ctx)
		if res == jobqueue.RunResultSuccess {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, res.String())
		}
		span.SetAttributes(attribute.String("jobqueue.result", res.String()))

		return res
	}
}
