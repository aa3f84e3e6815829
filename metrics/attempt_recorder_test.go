package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/flowenginer/meta-hub/metrics"
)

func TestAttemptRecorder_ObserveAttempt(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	recorder, err := metrics.NewAttemptRecorder(provider.Meter("test"))
	require.NoError(t, err)

	recorder.ObserveAttempt("dest-1", 120, true)
	recorder.ObserveAttempt("dest-1", 340, false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "metahub.delivery.attempt_duration", m.Name)

	hist, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	var sawSuccess, sawFailure bool
	for _, dp := range hist.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if string(attr.Key) == "success" {
				if attr.Value.AsBool() {
					sawSuccess = true
				} else {
					sawFailure = true
				}
			}
		}
	}
	assert.True(t, sawSuccess)
	assert.True(t, sawFailure)
}
