package alert

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a Rule or History row does not exist.
var ErrNotFound = errors.New("alert: not found")

// ErrInvalidLifecycle is returned when Acknowledge or Resolve is attempted
// from a History status that doesn't allow it.
var ErrInvalidLifecycle = errors.New("alert: invalid lifecycle transition")

// HistoryUpdate carries the field updates that accompany a History status
// change, mirroring the Event Store's TransitionFields shape.
type HistoryUpdate struct {
	NotifiedVia    []NotifyChannel
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// Repository persists Rules and their History.
type Repository interface {
	// ListActiveRules returns every is_active rule across every tenant —
	// the evaluator runs a single global tick, not one per tenant.
	ListActiveRules(ctx context.Context) ([]Rule, error)
	GetRule(ctx context.Context, tenantID, id string) (Rule, error)
	ListRules(ctx context.Context, tenantID string) ([]Rule, error)
	CreateRule(ctx context.Context, r Rule) (Rule, error)
	UpdateRule(ctx context.Context, r Rule) error
	SoftDelete(ctx context.Context, tenantID, id string) error

	// RecordTrigger bumps trigger_count and sets last_triggered_at on a fire.
	RecordTrigger(ctx context.Context, ruleID string, triggeredAt time.Time) error

	CreateHistory(ctx context.Context, h History) (History, error)
	GetHistory(ctx context.Context, tenantID, id string) (History, error)
	UpdateHistoryStatus(ctx context.Context, id string, status HistoryStatus, fields HistoryUpdate) error
	ListHistory(ctx context.Context, tenantID, ruleID string, limit int) ([]History, error)

	// CountOpenHistory returns the number of History rows not yet
	// resolved (triggered or acknowledged), across every tenant. Used by
	// the metrics Collector's open-alerts gauge.
	CountOpenHistory(ctx context.Context) (int64, error)
}
