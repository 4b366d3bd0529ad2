package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// meterName is the instrumentation scope name for jobqueue metrics.
const meterName = "github.com/nnikos123/android-priority-jobqueue"

// Metrics returns middleware that records per-attempt metrics using
// the global OTel MeterProvider. With no provider configured, noop
// instruments are used and the middleware is a pass-through.
//
// Instruments:
//   - jobqueue.run.duration (Float64Histogram): attempt time in
//     seconds, with attributes: result, group_id
//   - jobqueue.run.attempts (Int64Counter): total attempts,
//     with attributes: result, group_id
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided
// meter. This variant allows injecting a specific MeterProvider for
// testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once here; the OTel API returns noop
	// instruments on error, so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"jobqueue.run.duration",
		metric.WithDescription("Duration of a job execution attempt in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	attempts, aErr := meter.Int64Counter(
		"jobqueue.run.attempts",
		metric.WithDescription("Total number of job execution attempts"),
		metric.WithUnit("{attempt}"),
	)
	_ = aErr

	return func(ctx context.Context, h *jobqueue.JobHolder, next Handler) jobqueue.RunResult {
		start := time.Now()
		res := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("result", res.String()),
			attribute.String("group_id", h.GroupID()),
		)

		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return res
	}
}
