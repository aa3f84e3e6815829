package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter exports the gauges a Collector reports through OTel's
// Prometheus bridge, scraped at /metrics.
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	meter           metric.Meter
	queueDepthGauge metric.Int64ObservableGauge
	dlqCountGauge   metric.Int64ObservableGauge
	openAlertsGauge metric.Int64ObservableGauge
}

// NewOTelExporter builds an exporter that polls collector on each scrape.
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"meta-hub",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"metahub.delivery.queue_depth",
		metric.WithDescription("Delivery events currently in each non-terminal status"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	oe.dlqCountGauge, err = oe.meter.Int64ObservableGauge(
		"metahub.delivery.dlq_count",
		metric.WithDescription("Delivery events parked in the dead-letter queue"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeDLQCount),
	)
	if err != nil {
		return fmt.Errorf("creating dlq count gauge: %w", err)
	}

	oe.openAlertsGauge, err = oe.meter.Int64ObservableGauge(
		"metahub.alert.open_count",
		metric.WithDescription("Alert history rows not yet resolved"),
		metric.WithUnit("{alerts}"),
		metric.WithInt64Callback(oe.observeOpenAlerts),
	)
	if err != nil {
		return fmt.Errorf("creating open alerts gauge: %w", err)
	}

	return nil
}

func (oe *OTelExporter) observeQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	depth, err := oe.collector.GetQueueDepth(ctx)
	if err != nil {
		return err
	}
	for status, count := range depth {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("event.status", status),
		))
	}
	return nil
}

func (oe *OTelExporter) observeDLQCount(ctx context.Context, observer metric.Int64Observer) error {
	count, err := oe.collector.GetDLQCount(ctx)
	if err != nil {
		return err
	}
	observer.Observe(count)
	return nil
}

func (oe *OTelExporter) observeOpenAlerts(ctx context.Context, observer metric.Int64Observer) error {
	count, err := oe.collector.GetOpenAlertCount(ctx)
	if err != nil {
		return err
	}
	observer.Observe(count)
	return nil
}

// Meter exposes the exporter's meter so an AttemptRecorder can register its
// histogram on the same Prometheus bridge as the polled gauges.
func (oe *OTelExporter) Meter() metric.Meter {
	return oe.meter
}

// ServeHTTP serves Prometheus-formatted metrics.
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider.
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
