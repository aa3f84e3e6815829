package metrics_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowenginer/meta-hub/alert"
	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/metrics"
)

type fakeEventRepo struct {
	event.Repository
	counts map[event.Status]int64
}

func (f *fakeEventRepo) CountByStatus(ctx context.Context, status event.Status) (int64, error) {
	return f.counts[status], nil
}

type erroringEventRepo struct {
	event.Repository
}

func (erroringEventRepo) CountByStatus(ctx context.Context, status event.Status) (int64, error) {
	return 0, fmt.Errorf("boom")
}

type fakeAlertRepo struct {
	alert.Repository
	openCount int64
}

func (f *fakeAlertRepo) CountOpenHistory(ctx context.Context) (int64, error) {
	return f.openCount, nil
}

func TestPostgresCollector_GetQueueDepth(t *testing.T) {
	events := &fakeEventRepo{counts: map[event.Status]int64{
		event.StatusPending:    3,
		event.StatusProcessing: 1,
		event.StatusFailed:     2,
		event.StatusDLQ:        5,
	}}
	collector := metrics.NewPostgresCollector(events, &fakeAlertRepo{})

	depth, err := collector.GetQueueDepth(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), depth[string(event.StatusPending)])
	assert.Equal(t, int64(1), depth[string(event.StatusProcessing)])
	assert.Equal(t, int64(2), depth[string(event.StatusFailed)])
	_, hasDLQ := depth[string(event.StatusDLQ)]
	assert.False(t, hasDLQ, "DLQ is reported separately, not folded into queue depth")
}

func TestPostgresCollector_GetDLQCount(t *testing.T) {
	events := &fakeEventRepo{counts: map[event.Status]int64{event.StatusDLQ: 7}}
	collector := metrics.NewPostgresCollector(events, &fakeAlertRepo{})

	n, err := collector.GetDLQCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgresCollector_GetOpenAlertCount(t *testing.T) {
	collector := metrics.NewPostgresCollector(&fakeEventRepo{}, &fakeAlertRepo{openCount: 4})

	n, err := collector.GetOpenAlertCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPostgresCollector_Collect(t *testing.T) {
	events := &fakeEventRepo{counts: map[event.Status]int64{
		event.StatusPending: 2,
		event.StatusDLQ:     1,
	}}
	collector := metrics.NewPostgresCollector(events, &fakeAlertRepo{openCount: 9})

	snap, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), snap.QueueDepth[string(event.StatusPending)])
	assert.Equal(t, int64(1), snap.DLQCount)
	assert.Equal(t, int64(9), snap.OpenAlerts)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestPostgresCollector_Collect_PropagatesQueueDepthError(t *testing.T) {
	collector := metrics.NewPostgresCollector(&erroringEventRepo{}, &fakeAlertRepo{})

	_, err := collector.Collect(context.Background())
	assert.Error(t, err)
}
