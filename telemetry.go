package eventbus

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjaus/eventbus/schema"
)

const instrumentationName = "github.com/bjaus/eventbus"

// telemetry records dispatch spans and handler metrics.
type telemetry struct {
	tracer      trace.Tracer
	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	invocations, err := meter.Int64Counter("eventbus.handler.invocations",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("eventbus.handler.failures",
		metric.WithDescription("Number of handler invocations that failed"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("eventbus.handler.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:      tp.Tracer(instrumentationName),
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// startDispatch starts the span covering one dispatch loop.
func (t *telemetry) startDispatch(ctx context.Context, event any, matched int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "eventbus.dispatch",
		trace.WithAttributes(
			attribute.String("event.type", eventTypeName(event)),
			attribute.Int("eventbus.matched", matched),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// endDispatch completes the dispatch span. Handler failures are isolated, so
// the span is only marked as an error when nothing succeeded.
func (t *telemetry) endDispatch(span trace.Span, succeeded, failed int) {
	span.SetAttributes(
		attribute.Int("eventbus.succeeded", succeeded),
		attribute.Int("eventbus.failed", failed),
	)
	if failed > 0 && succeeded == 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handlers failed", failed))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// recordInvocation records one handler call.
func (t *telemetry) recordInvocation(ctx context.Context, sub *Subscription, d time.Duration, err error) {
	kv := []attribute.KeyValue{
		attribute.String("subscription", sub.Name()),
		attribute.String("subscription.id", sub.ID()),
	}
	attrs := metric.WithAttributes(kv...)

	t.invocations.Add(ctx, 1, attrs)
	t.latency.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if err != nil {
		t.failures.Add(ctx, 1, attrs)
		trace.SpanFromContext(ctx).RecordError(err, trace.WithAttributes(kv...))
	}
}

func eventTypeName(event any) string {
	if e, ok := event.(*schema.Event); ok {
		return e.Type().Name()
	}
	if h, ok := event.(TypeHierarchy); ok {
		if rt := h.EventType(); rt != nil {
			return rt.String()
		}
	}
	return fmt.Sprintf("%T", event)
}
