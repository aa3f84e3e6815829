//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabase = "metahub_test"
	testUser     = "metahub"
	testPassword = "metahub"
)

type testContainer struct {
	container testcontainers.Container
	db        *sql.DB
}

// setupPostgresContainer starts a real PostgreSQL container via
// testcontainers-go and applies the delivery_events/delivery_attempts
// schema this repository expects.
func setupPostgresContainer(t *testing.T, ctx context.Context) (*testContainer, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDatabase),
		tcpostgres.WithUsername(testUser),
		tcpostgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))

	createSchema(t, ctx, db)

	tc := &testContainer{container: pgContainer, db: db}
	cleanup := func() {
		_ = db.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return tc, cleanup
}

func createSchema(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	const schema = `
		CREATE TABLE IF NOT EXISTS delivery_events (
			id SERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			route_id TEXT NOT NULL,
			destination_id TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_event_id TEXT,
			idempotency_key TEXT,
			payload JSONB NOT NULL,
			transformed_payload JSONB,
			status TEXT NOT NULL,
			attempts_count INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 5,
			next_retry_at TIMESTAMPTZ,
			delivered_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ,
			error_message TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS delivery_attempts (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			attempt_number INT NOT NULL,
			request_url TEXT NOT NULL,
			request_method TEXT NOT NULL,
			status_code INT,
			response_body TEXT,
			error_message TEXT,
			duration_ms BIGINT NOT NULL,
			attempted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	_, err := db.ExecContext(ctx, schema)
	require.NoError(t, err)
}
