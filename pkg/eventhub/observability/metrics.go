package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event hub metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records an event entering the hub's ingress.
	RecordDispatch(ctx context.Context, eventType string)

	// RecordDelivery records one extension consuming one event, with the
	// total time spent in its listeners.
	RecordDelivery(ctx context.Context, extension string, duration time.Duration)

	// RecordSharedStateWrite records a shared-state snapshot write.
	RecordSharedStateWrite(ctx context.Context, owner, kind string)

	// RecordResponseOutcome records a response listener completing, either
	// with a paired response or a timeout.
	RecordResponseOutcome(ctx context.Context, timedOut bool)

	// RecordInboxDepth records an extension's inbox depth after an enqueue.
	RecordInboxDepth(ctx context.Context, extension string, depth int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches        metric.Int64Counter
	deliveryLatency   metric.Float64Histogram
	sharedStateWrites metric.Int64Counter
	responseOutcomes  metric.Int64Counter
	inboxDepth        metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventhub")

	dispatches, err := meter.Int64Counter("eventhub.event.dispatches",
		metric.WithDescription("Number of events dispatched into the hub"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("eventhub.delivery.latency_ms",
		metric.WithDescription("Per-extension listener time per event in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sharedStateWrites, err := meter.Int64Counter("eventhub.sharedstate.writes",
		metric.WithDescription("Number of shared-state snapshot writes"),
	)
	if err != nil {
		return nil, err
	}

	responseOutcomes, err := meter.Int64Counter("eventhub.response.outcomes",
		metric.WithDescription("Number of response listeners completed"),
	)
	if err != nil {
		return nil, err
	}

	inboxDepth, err := meter.Int64Histogram("eventhub.inbox.depth",
		metric.WithDescription("Extension inbox depth at enqueue time"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:        dispatches,
		deliveryLatency:   deliveryLatency,
		sharedStateWrites: sharedStateWrites,
		responseOutcomes:  responseOutcomes,
		inboxDepth:        inboxDepth,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by OpenTelemetry.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
//
// If metric creation fails, a warning is logged and NoopMetrics is returned.
func NewMetricsRecorder(logger *slog.Logger) MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		if logger != nil {
			logger.Warn("otel metrics unavailable, using noop",
				slog.String("error", err.Error()),
			)
		}
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch implements MetricsRecorder.
func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType string) {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
	))
}

// RecordDelivery implements MetricsRecorder.
func (m *otelMetrics) RecordDelivery(ctx context.Context, extension string, duration time.Duration) {
	m.deliveryLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("extension", extension),
	))
}

// RecordSharedStateWrite implements MetricsRecorder.
func (m *otelMetrics) RecordSharedStateWrite(ctx context.Context, owner, kind string) {
	m.sharedStateWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("owner", owner),
		attribute.String("kind", kind),
	))
}

// RecordResponseOutcome implements MetricsRecorder.
func (m *otelMetrics) RecordResponseOutcome(ctx context.Context, timedOut bool) {
	m.responseOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("timed_out", timedOut),
	))
}

// RecordInboxDepth implements MetricsRecorder.
func (m *otelMetrics) RecordInboxDepth(ctx context.Context, extension string, depth int64) {
	m.inboxDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("extension", extension),
	))
}
