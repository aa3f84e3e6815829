//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowenginer/meta-hub/event"
)

func TestRepository_CreateAndGet_Integration(t *testing.T) {
	ctx := context.Background()
	tc, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	repo := New(tc.db)

	created, err := repo.Create(ctx, event.DeliveryEvent{
		TenantID:      "tenant-1",
		RouteID:       "route-1",
		DestinationID: "dest-1",
		SourceType:    "whatsapp",
		Payload:       map[string]any{"hello": "world"},
	})
	require.NoError(t, err)
	assert.Equal(t, event.StatusPending, created.Status)
	assert.Equal(t, event.DefaultMaxAttempts, created.MaxAttempts)

	got, err := repo.Get(ctx, "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, map[string]any{"hello": "world"}, got.Payload)
}

func TestRepository_Transition_Integration(t *testing.T) {
	ctx := context.Background()
	tc, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	repo := New(tc.db)

	created, err := repo.Create(ctx, event.DeliveryEvent{
		TenantID: "tenant-1", RouteID: "route-1", DestinationID: "dest-1",
		SourceType: "whatsapp", Payload: map[string]any{},
	})
	require.NoError(t, err)

	t.Run("valid transition succeeds", func(t *testing.T) {
		err := repo.Transition(ctx, created.ID, event.StatusPending, event.StatusProcessing, event.TransitionFields{})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, event.StatusProcessing, got.Status)
	})

	t.Run("transition from stale status is a conflict", func(t *testing.T) {
		err := repo.Transition(ctx, created.ID, event.StatusPending, event.StatusProcessing, event.TransitionFields{})
		assert.ErrorIs(t, err, event.ErrConflict)
	})

	t.Run("delivered transition clears next_retry_at and sets delivered_at", func(t *testing.T) {
		now := time.Now()
		err := repo.Transition(ctx, created.ID, event.StatusProcessing, event.StatusDelivered, event.TransitionFields{
			DeliveredAt: &now,
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "tenant-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, event.StatusDelivered, got.Status)
		assert.Nil(t, got.NextRetryAt)
		require.NotNil(t, got.DeliveredAt)
	})
}

func TestRepository_QueryByStatus_Integration(t *testing.T) {
	ctx := context.Background()
	tc, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	repo := New(tc.db)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, event.DeliveryEvent{
			TenantID: "tenant-1", RouteID: "route-1", DestinationID: "dest-1",
			SourceType: "whatsapp", Payload: map[string]any{},
		})
		require.NoError(t, err)
	}

	events, err := repo.QueryByStatus(ctx, event.StatusPending, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRepository_AppendAttempt_Integration(t *testing.T) {
	ctx := context.Background()
	tc, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	repo := New(tc.db)

	created, err := repo.Create(ctx, event.DeliveryEvent{
		TenantID: "tenant-1", RouteID: "route-1", DestinationID: "dest-1",
		SourceType: "whatsapp", Payload: map[string]any{},
	})
	require.NoError(t, err)

	statusCode := 200
	_, err = repo.AppendAttempt(ctx, event.DeliveryAttempt{
		EventID:       created.ID,
		AttemptNumber: 1,
		RequestURL:    "https://example.com/hook",
		RequestMethod: "POST",
		StatusCode:    &statusCode,
		DurationMs:    120,
	})
	require.NoError(t, err)

	attempts, err := repo.ListAttempts(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	require.NotNil(t, attempts[0].StatusCode)
	assert.Equal(t, 200, *attempts[0].StatusCode)
}

func TestRepository_ConsecutiveFailures_Integration(t *testing.T) {
	ctx := context.Background()
	tc, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	repo := New(tc.db)

	for i := 0; i < 2; i++ {
		created, err := repo.Create(ctx, event.DeliveryEvent{
			TenantID: "tenant-1", RouteID: "route-1", DestinationID: "dest-1",
			SourceType: "whatsapp", Payload: map[string]any{},
		})
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, created.ID, event.StatusPending, event.StatusProcessing, event.TransitionFields{}))
		require.NoError(t, repo.Transition(ctx, created.ID, event.StatusProcessing, event.StatusFailed, event.TransitionFields{}))
	}

	count, err := repo.ConsecutiveFailures(ctx, "tenant-1", "route-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
