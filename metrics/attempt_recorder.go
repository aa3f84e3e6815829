package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttemptRecorder implements destination.Recorder as an OTel histogram,
// recorded at the point of measurement rather than polled like the
// Collector's gauges — there's no "current" attempt latency to sample.
type AttemptRecorder struct {
	histogram metric.Int64Histogram
}

// NewAttemptRecorder builds a recorder on meter. Pass the same
// sdkmetric.MeterProvider-backed Meter an OTelExporter registers its
// gauges on so both export through the same Prometheus bridge.
func NewAttemptRecorder(meter metric.Meter) (*AttemptRecorder, error) {
	h, err := meter.Int64Histogram(
		"metahub.delivery.attempt_duration",
		metric.WithDescription("Outbound delivery attempt duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &AttemptRecorder{histogram: h}, nil
}

// ObserveAttempt implements destination.Recorder.
func (r *AttemptRecorder) ObserveAttempt(destinationID string, durationMs int64, success bool) {
	r.histogram.Record(context.Background(), durationMs, metric.WithAttributes(
		attribute.String("destination.id", destinationID),
		attribute.Bool("success", success),
	))
}
