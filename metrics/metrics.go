// Package metrics exports meta-hub's operational signals through
// OpenTelemetry's Prometheus bridge, the same pull-based Collector shape the
// teacher's webhook-inbox metrics package uses, retargeted from Redis
// stream introspection onto the Event Store and Alert Rule Engine.
package metrics

import (
	"context"
	"time"
)

// Snapshot is the current state of the delivery pipeline as of Timestamp.
type Snapshot struct {
	// QueueDepth maps a delivery status (pending, processing, failed) to the count
	// of events currently sitting in it, across every tenant.
	QueueDepth map[string]int64 `json:"queue_depth"`

	// DLQCount is the number of events parked in the dead-letter queue.
	DLQCount int64 `json:"dlq_count"`

	// OpenAlerts is the number of alert History rows not yet resolved.
	OpenAlerts int64 `json:"open_alerts"`

	Timestamp time.Time `json:"timestamp"`
}

// Collector gathers the gauges the OTel exporter reports.
type Collector interface {
	Collect(ctx context.Context) (Snapshot, error)
	GetQueueDepth(ctx context.Context) (map[string]int64, error)
	GetDLQCount(ctx context.Context) (int64, error)
	GetOpenAlertCount(ctx context.Context) (int64, error)
}
