// Package postgres implements event.Repository against PostgreSQL,
// including the optimistic-concurrency UPDATE ... WHERE id = $1 AND
// status = $2 that guards every state transition.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/event"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Create(ctx context.Context, e event.DeliveryEvent) (event.DeliveryEvent, error) {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return event.DeliveryEvent{}, fmt.Errorf("marshaling payload: %w", err)
	}
	var transformedJSON []byte
	if e.TransformedPayload != nil {
		transformedJSON, err = json.Marshal(e.TransformedPayload)
		if err != nil {
			return event.DeliveryEvent{}, fmt.Errorf("marshaling transformed payload: %w", err)
		}
	}
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return event.DeliveryEvent{}, fmt.Errorf("marshaling metadata: %w", err)
	}
	if e.MaxAttempts == 0 {
		e.MaxAttempts = event.DefaultMaxAttempts
	}
	if e.Status == "" {
		e.Status = event.StatusPending
	}
	if e.NextRetryAt == nil {
		now := time.Now()
		e.NextRetryAt = &now
	}

	const query = `
		INSERT INTO delivery_events (tenant_id, route_id, destination_id, source_type,
		                              source_event_id, idempotency_key, payload, transformed_payload,
		                              status, attempts_count, max_attempts, next_retry_at, metadata,
		                              created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12, now(), now())
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		e.TenantID, e.RouteID, e.DestinationID, e.SourceType,
		nullableString(e.SourceEventID), nullableString(e.IdempotencyKey), payloadJSON, nullableJSON(transformedJSON),
		e.Status, e.MaxAttempts, e.NextRetryAt, metadataJSON,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return event.DeliveryEvent{}, fmt.Errorf("inserting delivery event: %w", err)
	}
	return e, nil
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (event.DeliveryEvent, error) {
	const query = selectEventColumns + ` FROM delivery_events WHERE id = $1 AND tenant_id = $2`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.DeliveryEvent{}, event.ErrNotFound
	}
	if err != nil {
		return event.DeliveryEvent{}, fmt.Errorf("selecting delivery event: %w", err)
	}
	return e, nil
}

// Transition is the single conditional UPDATE guarding every state change:
// it only succeeds while the stored status still equals from, and only
// runs at all once the state machine agrees from -> to is a valid edge.
func (r *Repository) Transition(ctx context.Context, id string, from, to event.Status, fields event.TransitionFields) error {
	if !event.CanTransition(from, to) {
		return event.ErrInvalidTransition{From: from, To: to}
	}

	setClauses := []string{"status = $1", "updated_at = now()"}
	args := []any{to}
	idx := 2

	add := func(clause string, val any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", clause, idx))
		args = append(args, val)
		idx++
	}

	if fields.AttemptsCount != nil {
		add("attempts_count", *fields.AttemptsCount)
	}
	if fields.NextRetryAt != nil {
		add("next_retry_at", *fields.NextRetryAt)
	} else if to == event.StatusDelivered || to == event.StatusDLQ || to == event.StatusCancelled {
		setClauses = append(setClauses, "next_retry_at = NULL")
	}
	if fields.DeliveredAt != nil {
		add("delivered_at", *fields.DeliveredAt)
	}
	if fields.FailedAt != nil {
		add("failed_at", *fields.FailedAt)
	}
	if fields.ErrorMessage != nil {
		add("error_message", *fields.ErrorMessage)
	}
	if fields.MaxAttempts != nil {
		add("max_attempts", *fields.MaxAttempts)
	}

	query := fmt.Sprintf(
		"UPDATE delivery_events SET %s WHERE id = $%d AND status = $%d",
		joinClauses(setClauses), idx, idx+1,
	)
	args = append(args, id, from)

	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transitioning delivery event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading transition result: %w", err)
	}
	if affected == 0 {
		return event.ErrConflict
	}
	return nil
}

func joinClauses(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}

func (r *Repository) AppendAttempt(ctx context.Context, a event.DeliveryAttempt) (event.DeliveryAttempt, error) {
	const query = `
		INSERT INTO delivery_attempts (event_id, attempt_number, request_url, request_method,
		                               status_code, response_body, error_message, duration_ms, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, attempted_at
	`
	err := r.DB.QueryRowContext(ctx, query,
		a.EventID, a.AttemptNumber, a.RequestURL, a.RequestMethod,
		nullableInt(a.StatusCode), nullableString(a.ResponseBody), nullableString(a.ErrorMessage), a.DurationMs,
	).Scan(&a.ID, &a.AttemptedAt)
	if err != nil {
		return event.DeliveryAttempt{}, fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return a, nil
}

func (r *Repository) ListAttempts(ctx context.Context, eventID string) ([]event.DeliveryAttempt, error) {
	const query = `
		SELECT id, event_id, attempt_number, request_url, request_method,
		       status_code, response_body, error_message, duration_ms, attempted_at
		FROM delivery_attempts
		WHERE event_id = $1
		ORDER BY attempt_number ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing delivery attempts: %w", err)
	}
	defer rows.Close()

	var out []event.DeliveryAttempt
	for rows.Next() {
		var a event.DeliveryAttempt
		var statusCode sql.NullInt64
		var responseBody, errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.EventID, &a.AttemptNumber, &a.RequestURL, &a.RequestMethod,
			&statusCode, &responseBody, &errMsg, &a.DurationMs, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		if statusCode.Valid {
			sc := int(statusCode.Int64)
			a.StatusCode = &sc
		}
		a.ResponseBody = responseBody.String
		a.ErrorMessage = errMsg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) QueryByStatus(ctx context.Context, status event.Status, readyBefore time.Time, limit int) ([]event.DeliveryEvent, error) {
	query := selectEventColumns + `
		FROM delivery_events
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY COALESCE(next_retry_at, created_at) ASC
		LIMIT $3
	`
	rows, err := r.DB.QueryContext(ctx, query, status, readyBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events by status: %w", err)
	}
	defer rows.Close()

	var out []event.DeliveryEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) CountByStatus(ctx context.Context, status event.Status) (int64, error) {
	const query = `SELECT count(*) FROM delivery_events WHERE status = $1`
	var n int64
	if err := r.DB.QueryRowContext(ctx, query, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events by status: %w", err)
	}
	return n, nil
}

func (r *Repository) StatsByWindow(ctx context.Context, tenantID string, windowHours int) (event.StatsWindow, error) {
	const query = `
		SELECT
			count(DISTINCT e.id) AS total,
			count(DISTINCT e.id) FILTER (WHERE e.status = 'delivered') AS delivered,
			count(DISTINCT e.id) FILTER (WHERE e.status = 'failed') AS failed,
			count(DISTINCT e.id) FILTER (WHERE e.status = 'dlq') AS dlq,
			coalesce(avg(d.duration_ms), 0) AS avg_latency,
			coalesce(percentile_cont(0.95) WITHIN GROUP (ORDER BY d.duration_ms), 0) AS p95_latency
		FROM delivery_events e
		LEFT JOIN delivery_attempts d ON d.event_id = e.id
		WHERE e.tenant_id = $1 AND e.created_at >= now() - ($2 || ' hours')::interval
	`
	var s event.StatsWindow
	s.TenantID = tenantID
	s.WindowHours = windowHours
	err := r.DB.QueryRowContext(ctx, query, tenantID, windowHours).Scan(
		&s.TotalEvents, &s.Delivered, &s.Failed, &s.DLQ, &s.AvgLatencyMs, &s.P95LatencyMs,
	)
	if err != nil {
		return event.StatsWindow{}, fmt.Errorf("computing stats window: %w", err)
	}
	return s, nil
}

func (r *Repository) ConsecutiveFailures(ctx context.Context, tenantID, routeID string) (int, error) {
	const query = `
		SELECT status FROM delivery_events
		WHERE tenant_id = $1 AND route_id = $2
		ORDER BY created_at DESC
		LIMIT 200
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, routeID)
	if err != nil {
		return 0, fmt.Errorf("querying recent events: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var status event.Status
		if err := rows.Scan(&status); err != nil {
			return 0, fmt.Errorf("scanning status: %w", err)
		}
		switch status {
		case event.StatusFailed, event.StatusDLQ:
			count++
			continue
		case event.StatusPending, event.StatusProcessing, event.StatusCancelled:
			continue
		}
		break
	}
	return count, rows.Err()
}

// FindByIdempotencyKey looks within a trailing 24-hour window, matching the
// dedup policy's "within a 24-hour window" bound — an older event with the
// same key is treated as unrelated, not a duplicate.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, tenantID, routeID, key string) (event.DeliveryEvent, error) {
	query := selectEventColumns + `
		FROM delivery_events
		WHERE tenant_id = $1 AND route_id = $2 AND idempotency_key = $3
			AND created_at >= now() - interval '24 hours'
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.DB.QueryRowContext(ctx, query, tenantID, routeID, key)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.DeliveryEvent{}, event.ErrNotFound
	}
	if err != nil {
		return event.DeliveryEvent{}, fmt.Errorf("selecting by idempotency key: %w", err)
	}
	return e, nil
}

func (r *Repository) List(ctx context.Context, tenantID string, status event.Status, limit, offset int) ([]event.DeliveryEvent, error) {
	query := selectEventColumns + `
		FROM delivery_events
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing delivery events: %w", err)
	}
	defer rows.Close()

	var out []event.DeliveryEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectEventColumns = `
	SELECT id, tenant_id, route_id, destination_id, source_type, source_event_id,
	       idempotency_key, payload, transformed_payload, status, attempts_count,
	       max_attempts, next_retry_at, delivered_at, failed_at, error_message,
	       metadata, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.DeliveryEvent, error) {
	var e event.DeliveryEvent
	var sourceEventID, idempotencyKey, errorMessage sql.NullString
	var payloadJSON, transformedJSON, metadataJSON []byte
	var nextRetryAt, deliveredAt, failedAt sql.NullTime

	err := row.Scan(
		&e.ID, &e.TenantID, &e.RouteID, &e.DestinationID, &e.SourceType, &sourceEventID,
		&idempotencyKey, &payloadJSON, &transformedJSON, &e.Status, &e.AttemptsCount,
		&e.MaxAttempts, &nextRetryAt, &deliveredAt, &failedAt, &errorMessage,
		&metadataJSON, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return event.DeliveryEvent{}, err
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return event.DeliveryEvent{}, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}
	if len(transformedJSON) > 0 {
		if err := json.Unmarshal(transformedJSON, &e.TransformedPayload); err != nil {
			return event.DeliveryEvent{}, fmt.Errorf("unmarshaling transformed_payload: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return event.DeliveryEvent{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	e.SourceEventID = sourceEventID.String
	e.IdempotencyKey = idempotencyKey.String
	e.ErrorMessage = errorMessage.String
	if nextRetryAt.Valid {
		e.NextRetryAt = &nextRetryAt.Time
	}
	if deliveredAt.Valid {
		e.DeliveredAt = &deliveredAt.Time
	}
	if failedAt.Valid {
		e.FailedAt = &failedAt.Time
	}
	return e, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
