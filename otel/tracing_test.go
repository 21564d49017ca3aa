package otel

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/petal-labs/toolflow"
)

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func TestTracingHandlerDispatchSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	defer tp.Shutdown(context.Background())
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	start := time.Now()
	h.HandleEvent(ctx, toolflow.Event{
		Kind: toolflow.EventDispatchStarted, DispatchID: "d1", Tool: "echo", Time: start,
	})
	h.HandleEvent(ctx, toolflow.Event{
		Kind: toolflow.EventStepStarted, DispatchID: "d1", Tool: "calc", Time: start,
	})
	h.HandleEvent(ctx, toolflow.Event{
		Kind: toolflow.EventDispatchFinished, DispatchID: "d1", Tool: "echo",
		Time: start.Add(time.Second), Elapsed: time.Second,
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "dispatch:echo" {
		t.Errorf("span name = %q", span.Name)
	}
	if len(span.Events) != 1 || span.Events[0].Name != string(toolflow.EventStepStarted) {
		t.Errorf("span events = %+v, want one step.started", span.Events)
	}
}

func TestTracingHandlerFailedDispatch(t *testing.T) {
	exporter, tp := newTestTracer()
	defer tp.Shutdown(context.Background())
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	h.HandleEvent(ctx, toolflow.Event{
		Kind: toolflow.EventDispatchStarted, DispatchID: "d2", Tool: "boom", Time: time.Now(),
	})
	h.HandleEvent(ctx, toolflow.Event{
		Kind: toolflow.EventDispatchFailed, DispatchID: "d2", Tool: "boom",
		Time:    time.Now(),
		Payload: toolflow.Response{"error": "HANDLER: exploded"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status.Description != "HANDLER: exploded" {
		t.Errorf("status = %+v", spans[0].Status)
	}
}

func TestTracingHandlerIgnoresUnknownDispatch(t *testing.T) {
	exporter, tp := newTestTracer()
	defer tp.Shutdown(context.Background())
	h := NewTracingHandler(tp.Tracer("test"))

	// Finish without a matching start must not panic or export.
	h.HandleEvent(context.Background(), toolflow.Event{
		Kind: toolflow.EventDispatchFinished, DispatchID: "ghost", Time: time.Now(),
	})
	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("spans = %d, want 0", got)
	}
}

func TestTracingHandlerActiveSpanContext(t *testing.T) {
	_, tp := newTestTracer()
	defer tp.Shutdown(context.Background())
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	if h.ActiveSpanContext("d3").IsValid() {
		t.Error("span context valid before start")
	}
	h.HandleEvent(ctx, toolflow.Event{Kind: toolflow.EventDispatchStarted, DispatchID: "d3", Time: time.Now()})
	if !h.ActiveSpanContext("d3").IsValid() {
		t.Error("span context invalid while dispatch active")
	}
	h.HandleEvent(ctx, toolflow.Event{Kind: toolflow.EventDispatchFinished, DispatchID: "d3", Time: time.Now()})
	if h.ActiveSpanContext("d3").IsValid() {
		t.Error("span context valid after finish")
	}
}
