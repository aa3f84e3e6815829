//go:build integration

package alert_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/flowenginer/meta-hub/alert"
)

func setupRedisContainer(t *testing.T, ctx context.Context) (*goredis.Client, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx,
		"redis:7-alpine",
		testcontainersredis.WithSnapshotting(10, 1),
	)
	require.NoError(t, err, "failed to start redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: addr[len("redis://"):]})
	require.NoError(t, client.Ping(ctx).Err())

	cleanup := func() {
		_ = client.Close()
		_ = redisContainer.Terminate(ctx)
	}
	return client, cleanup
}

func TestCooldownCache_MarkTriggered_Integration(t *testing.T) {
	ctx := context.Background()
	client, cleanup := setupRedisContainer(t, ctx)
	defer cleanup()

	cache := alert.NewCooldownCache(client)

	require.False(t, cache.InCooldown(ctx, "rule-1"))

	cache.MarkTriggered(ctx, "rule-1", 5)
	require.True(t, cache.InCooldown(ctx, "rule-1"))

	ttl, err := client.TTL(ctx, "alert:cooldown:rule-1").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 4*time.Minute)
	require.LessOrEqual(t, ttl, 5*time.Minute)
}

func TestCooldownCache_MarkTriggered_ZeroCooldownSkipsWrite(t *testing.T) {
	ctx := context.Background()
	client, cleanup := setupRedisContainer(t, ctx)
	defer cleanup()

	cache := alert.NewCooldownCache(client)
	cache.MarkTriggered(ctx, "rule-2", 0)

	require.False(t, cache.InCooldown(ctx, "rule-2"))
}
