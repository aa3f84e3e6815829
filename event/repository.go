package event

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a DeliveryEvent does not exist.
var ErrNotFound = errors.New("event: not found")

// ErrConflict is returned by Transition when the optimistic-concurrency
// check on the from-state fails (zero rows affected) — another worker
// already moved the event. Callers log it and move on; the state machine
// forbids automatic retry of a conflicting transition (spec §5).
var ErrConflict = errors.New("event: conflicting transition")

// TransitionFields carries the field updates that accompany a state
// transition, separate from the (from, to) pair itself so callers cannot
// accidentally write status-inconsistent fields.
type TransitionFields struct {
	AttemptsCount *int
	NextRetryAt   *time.Time
	DeliveredAt   *time.Time
	FailedAt      *time.Time
	ErrorMessage  *string
	MaxAttempts   *int
}

// Repository persists DeliveryEvents and their DeliveryAttempts.
type Repository interface {
	Create(ctx context.Context, e DeliveryEvent) (DeliveryEvent, error)
	Get(ctx context.Context, tenantID, id string) (DeliveryEvent, error)

	// Transition applies an optimistic-concurrency-guarded UPDATE ... WHERE
	// id = $1 AND status = $2. Returns ErrConflict if from no longer
	// matches the stored status.
	Transition(ctx context.Context, id string, from, to Status, fields TransitionFields) error

	AppendAttempt(ctx context.Context, a DeliveryAttempt) (DeliveryAttempt, error)
	ListAttempts(ctx context.Context, eventID string) ([]DeliveryAttempt, error)

	// QueryByStatus returns up to limit events in status whose
	// next_retry_at is null or <= readyBefore, oldest first.
	QueryByStatus(ctx context.Context, status Status, readyBefore time.Time, limit int) ([]DeliveryEvent, error)

	StatsByWindow(ctx context.Context, tenantID string, windowHours int) (StatsWindow, error)

	// ConsecutiveFailures returns the number of most-recent consecutive
	// failed/dlq events for tenantID on routeID, stopping at the first
	// delivered one (or the start of history). Pending, processing and
	// cancelled events neither count nor end the streak.
	ConsecutiveFailures(ctx context.Context, tenantID, routeID string) (int, error)

	FindByIdempotencyKey(ctx context.Context, tenantID, routeID, key string) (DeliveryEvent, error)

	List(ctx context.Context, tenantID string, status Status, limit, offset int) ([]DeliveryEvent, error)

	// CountByStatus returns the number of events currently in status,
	// across every tenant. Used by the metrics Collector for queue-depth
	// and DLQ gauges, not by delivery itself.
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
