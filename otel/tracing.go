// Package otel translates toolflow dispatch events into OpenTelemetry
// traces and metrics.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/toolflow"
)

// TracingHandler translates dispatch events into OpenTelemetry spans: a
// span per dispatch, with pipeline steps recorded as span events. Span
// lifecycle follows event kind, so the dispatcher needs no tracing code.
type TracingHandler struct {
	tracer trace.Tracer

	mu    sync.RWMutex
	spans map[string]trace.Span // dispatchID -> span
}

// NewTracingHandler creates a handler that opens spans with tracer.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// HandleEvent implements toolflow.EventHandler.
func (h *TracingHandler) HandleEvent(ctx context.Context, e toolflow.Event) {
	switch e.Kind {
	case toolflow.EventDispatchStarted:
		h.handleStarted(ctx, e)
	case toolflow.EventDispatchFinished:
		h.handleFinished(e, codes.Ok, "")
	case toolflow.EventDispatchFailed:
		h.handleFinished(e, codes.Error, errorMessage(e))
	case toolflow.EventStepStarted, toolflow.EventStepFinished,
		toolflow.EventStepFailed, toolflow.EventStepSkipped:
		h.handleStepEvent(e)
	}
}

func (h *TracingHandler) handleStarted(ctx context.Context, e toolflow.Event) {
	_, span := h.tracer.Start(ctx, "dispatch:"+e.Tool,
		trace.WithAttributes(
			attribute.String("toolflow.dispatch_id", e.DispatchID),
			attribute.String("toolflow.tool", e.Tool),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.spans[e.DispatchID] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleFinished(e toolflow.Event, status codes.Code, message string) {
	h.mu.Lock()
	span, ok := h.spans[e.DispatchID]
	if ok {
		delete(h.spans, e.DispatchID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("toolflow.duration", e.Elapsed.String()))
	if status == codes.Error {
		span.SetStatus(codes.Error, message)
		span.RecordError(spanError(message), trace.WithTimestamp(e.Time))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// handleStepEvent attaches pipeline step activity to the innermost active
// dispatch span. Steps dispatch through the dispatcher again, so their own
// invocations get dedicated spans; the event here marks the pipeline's view.
func (h *TracingHandler) handleStepEvent(e toolflow.Event) {
	h.mu.RLock()
	var span trace.Span
	if e.DispatchID != "" {
		span = h.spans[e.DispatchID]
	}
	h.mu.RUnlock()
	if span == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("toolflow.step_tool", e.Tool),
	}
	if msg := errorMessage(e); msg != "" {
		attrs = append(attrs, attribute.String("toolflow.error", msg))
	}
	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// ActiveSpanContext returns the span context of an in-flight dispatch, or an
// empty SpanContext when none is active.
func (h *TracingHandler) ActiveSpanContext(dispatchID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.spans[dispatchID]
	h.mu.RUnlock()
	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

func errorMessage(e toolflow.Event) string {
	if e.Payload == nil {
		return ""
	}
	if s, ok := e.Payload["error"].(string); ok {
		return s
	}
	return ""
}

type spanError string

func (e spanError) Error() string { return string(e) }

var _ toolflow.EventHandler = (*TracingHandler)(nil)
