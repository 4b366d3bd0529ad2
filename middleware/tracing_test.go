package middleware_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	mw "github.com/nnikos123/android-priority-jobqueue/middleware"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)
	h := testHolder(t, "job_span")

	res := m(context.Background(), h, func(context.Context) jobqueue.RunResult {
		return jobqueue.RunResultSuccess
	})
	if res != jobqueue.RunResultSuccess {
		t.Fatalf("result = %v, want success", res)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "jobqueue.run" {
		t.Errorf("span name = %q, want %q", spans[0].Name(), "jobqueue.run")
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)
	h := testHolder(t, "job_attrs")
	h.SetGroupID("reports")

	_ = m(context.Background(), h, func(context.Context) jobqueue.RunResult {
		return jobqueue.RunResultSuccess
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["jobqueue.job.id"].AsString(); got != "job_attrs" {
		t.Errorf("jobqueue.job.id = %q, want %q", got, "job_attrs")
	}
	if got := attrs["jobqueue.group_id"].AsString(); got != "reports" {
		t.Errorf("jobqueue.group_id = %q, want %q", got, "reports")
	}
	if got := attrs["jobqueue.result"].AsString(); got != "success" {
		t.Errorf("jobqueue.result = %q, want %q", got, "success")
	}
}

func TestTracing_ErrorStatusOnFailure(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)
	h := testHolder(t, "job_fail")

	_ = m(context.Background(), h, func(context.Context) jobqueue.RunResult {
		return jobqueue.RunResultFailRunLimit
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	status := spans[0].Status()
	if status.Code != codes.Error {
		t.Errorf("status = %v, want Error", status.Code)
	}
	if status.Description != "fail_run_limit" {
		t.Errorf("description = %q, want %q", status.Description, "fail_run_limit")
	}
}
