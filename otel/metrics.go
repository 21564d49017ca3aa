package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/toolflow"
)

// MetricsHandler records dispatch counters and duration histograms from
// dispatch events.
type MetricsHandler struct {
	dispatches metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetricsHandler creates instruments on the given meter.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	dispatches, err := meter.Int64Counter("toolflow.dispatch.count",
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("toolflow.dispatch.failures",
		metric.WithDescription("Number of failed tool dispatches"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("toolflow.dispatch.duration",
		metric.WithDescription("Duration of tool dispatch in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		dispatches: dispatches,
		failures:   failures,
		duration:   duration,
	}, nil
}

// HandleEvent implements toolflow.EventHandler.
func (h *MetricsHandler) HandleEvent(_ context.Context, e toolflow.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("tool", e.Tool))

	switch e.Kind {
	case toolflow.EventDispatchFinished:
		h.dispatches.Add(ctx, 1, attrs)
		h.duration.Record(ctx, e.Elapsed.Seconds(), attrs)
	case toolflow.EventDispatchFailed:
		h.dispatches.Add(ctx, 1, attrs)
		h.failures.Add(ctx, 1, attrs)
		h.duration.Record(ctx, e.Elapsed.Seconds(), attrs)
	}
}

var _ toolflow.EventHandler = (*MetricsHandler)(nil)
