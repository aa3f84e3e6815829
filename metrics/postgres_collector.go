package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/flowenginer/meta-hub/alert"
	"github.com/flowenginer/meta-hub/event"
)

// queueStatuses are the DeliveryEvent statuses that count as "in the
// queue" for the depth gauge: pending, processing, and failed awaiting a
// retry. Delivered, cancelled and DLQ events are not counted here.
var queueStatuses = []event.Status{event.StatusPending, event.StatusProcessing, event.StatusFailed}

// PostgresCollector implements Collector against the Event Store and the
// Alert Rule Engine's storage directly, the same role the teacher's
// RedisCollector played against Redis Streams and worker heartbeats.
type PostgresCollector struct {
	events event.Repository
	alerts alert.Repository
}

// NewPostgresCollector builds a Collector over events and alerts.
func NewPostgresCollector(events event.Repository, alerts alert.Repository) *PostgresCollector {
	return &PostgresCollector{events: events, alerts: alerts}
}

func (c *PostgresCollector) Collect(ctx context.Context) (Snapshot, error) {
	depth, err := c.GetQueueDepth(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting queue depth: %w", err)
	}
	dlq, err := c.GetDLQCount(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting dlq count: %w", err)
	}
	openAlerts, err := c.GetOpenAlertCount(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting open alert count: %w", err)
	}

	return Snapshot{
		QueueDepth: depth,
		DLQCount:   dlq,
		OpenAlerts: openAlerts,
		Timestamp:  time.Now(),
	}, nil
}

func (c *PostgresCollector) GetQueueDepth(ctx context.Context) (map[string]int64, error) {
	depth := make(map[string]int64, len(queueStatuses))
	for _, status := range queueStatuses {
		n, err := c.events.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("counting %s events: %w", status, err)
		}
		depth[string(status)] = n
	}
	return depth, nil
}

func (c *PostgresCollector) GetDLQCount(ctx context.Context) (int64, error) {
	return c.events.CountByStatus(ctx, event.StatusDLQ)
}

func (c *PostgresCollector) GetOpenAlertCount(ctx context.Context) (int64, error) {
	return c.alerts.CountOpenHistory(ctx)
}
