// Package postgres implements alert.Repository against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/alert"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

const ruleColumns = `
	id, tenant_id, name, description, condition_type, condition_config, notify_channels,
	notify_config, cooldown_minutes, last_triggered_at, trigger_count, is_active,
	created_at, updated_at
`

func (r *Repository) ListActiveRules(ctx context.Context) ([]alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE is_active = true`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active alert rules: %w", err)
	}
	defer rows.Close()

	var out []alert.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) GetRule(ctx context.Context, tenantID, id string) (alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1 AND tenant_id = $2`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.Rule{}, alert.ErrNotFound
	}
	if err != nil {
		return alert.Rule{}, fmt.Errorf("selecting alert rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) ListRules(ctx context.Context, tenantID string) ([]alert.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE tenant_id = $1 ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing alert rules: %w", err)
	}
	defer rows.Close()

	var out []alert.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) CreateRule(ctx context.Context, rule alert.Rule) (alert.Rule, error) {
	conditionJSON, err := json.Marshal(rule.ConditionConfig)
	if err != nil {
		return alert.Rule{}, fmt.Errorf("marshaling condition_config: %w", err)
	}
	notifyConfigJSON, err := json.Marshal(rule.NotifyConfig)
	if err != nil {
		return alert.Rule{}, fmt.Errorf("marshaling notify_config: %w", err)
	}
	channelsJSON, err := json.Marshal(rule.NotifyChannels)
	if err != nil {
		return alert.Rule{}, fmt.Errorf("marshaling notify_channels: %w", err)
	}

	const query = `
		INSERT INTO alert_rules (tenant_id, name, description, condition_type, condition_config,
		                          notify_channels, notify_config, cooldown_minutes, trigger_count,
		                          is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, now(), now())
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		rule.TenantID, rule.Name, rule.Description, rule.ConditionType, conditionJSON,
		channelsJSON, notifyConfigJSON, rule.CooldownMinutes, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return alert.Rule{}, fmt.Errorf("inserting alert rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule alert.Rule) error {
	conditionJSON, err := json.Marshal(rule.ConditionConfig)
	if err != nil {
		return fmt.Errorf("marshaling condition_config: %w", err)
	}
	notifyConfigJSON, err := json.Marshal(rule.NotifyConfig)
	if err != nil {
		return fmt.Errorf("marshaling notify_config: %w", err)
	}
	channelsJSON, err := json.Marshal(rule.NotifyChannels)
	if err != nil {
		return fmt.Errorf("marshaling notify_channels: %w", err)
	}

	const query = `
		UPDATE alert_rules
		SET name = $1, description = $2, condition_type = $3, condition_config = $4,
		    notify_channels = $5, notify_config = $6, cooldown_minutes = $7, is_active = $8,
		    updated_at = now()
		WHERE id = $9 AND tenant_id = $10
	`
	result, err := r.DB.ExecContext(ctx, query,
		rule.Name, rule.Description, rule.ConditionType, conditionJSON, channelsJSON,
		notifyConfigJSON, rule.CooldownMinutes, rule.IsActive, rule.ID, rule.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating alert rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE alert_rules SET is_active = false, updated_at = now() WHERE id = $1 AND tenant_id = $2`
	result, err := r.DB.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("deactivating alert rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func (r *Repository) RecordTrigger(ctx context.Context, ruleID string, triggeredAt time.Time) error {
	const query = `
		UPDATE alert_rules
		SET last_triggered_at = $1, trigger_count = trigger_count + 1, updated_at = now()
		WHERE id = $2
	`
	_, err := r.DB.ExecContext(ctx, query, triggeredAt, ruleID)
	if err != nil {
		return fmt.Errorf("recording alert rule trigger: %w", err)
	}
	return nil
}

const historyColumns = `
	id, rule_id, tenant_id, status, condition_snapshot, notified_via,
	acknowledged_by, acknowledged_at, resolved_at, created_at
`

func (r *Repository) CreateHistory(ctx context.Context, h alert.History) (alert.History, error) {
	snapshotJSON, err := json.Marshal(h.ConditionSnapshot)
	if err != nil {
		return alert.History{}, fmt.Errorf("marshaling condition_snapshot: %w", err)
	}

	const query = `
		INSERT INTO alert_history (rule_id, tenant_id, status, condition_snapshot, notified_via, created_at)
		VALUES ($1, $2, $3, $4, '[]', now())
		RETURNING id, created_at
	`
	err = r.DB.QueryRowContext(ctx, query, h.RuleID, h.TenantID, h.Status, snapshotJSON).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return alert.History{}, fmt.Errorf("inserting alert history: %w", err)
	}
	return h, nil
}

func (r *Repository) GetHistory(ctx context.Context, tenantID, id string) (alert.History, error) {
	query := `SELECT ` + historyColumns + ` FROM alert_history WHERE id = $1 AND tenant_id = $2`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.History{}, alert.ErrNotFound
	}
	if err != nil {
		return alert.History{}, fmt.Errorf("selecting alert history: %w", err)
	}
	return h, nil
}

func (r *Repository) UpdateHistoryStatus(ctx context.Context, id string, status alert.HistoryStatus, fields alert.HistoryUpdate) error {
	var channelsJSON any
	if fields.NotifiedVia != nil {
		b, err := json.Marshal(fields.NotifiedVia)
		if err != nil {
			return fmt.Errorf("marshaling notified_via: %w", err)
		}
		channelsJSON = b
	}

	const query = `
		UPDATE alert_history
		SET status = $1, notified_via = COALESCE($2, notified_via),
		    acknowledged_by = COALESCE($3, acknowledged_by),
		    acknowledged_at = COALESCE($4, acknowledged_at),
		    resolved_at = COALESCE($5, resolved_at)
		WHERE id = $6
	`
	result, err := r.DB.ExecContext(ctx, query,
		status, channelsJSON, nullableStringPtr(fields.AcknowledgedBy),
		nullableTimePtr(fields.AcknowledgedAt), nullableTimePtr(fields.ResolvedAt), id,
	)
	if err != nil {
		return fmt.Errorf("updating alert history: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func (r *Repository) ListHistory(ctx context.Context, tenantID, ruleID string, limit int) ([]alert.History, error) {
	query := `SELECT ` + historyColumns + ` FROM alert_history WHERE tenant_id = $1 AND rule_id = $2 ORDER BY created_at DESC LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alert history: %w", err)
	}
	defer rows.Close()

	var out []alert.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) CountOpenHistory(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM alert_history WHERE status != $1`
	var n int64
	if err := r.DB.QueryRowContext(ctx, query, alert.HistoryResolved).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting open alert history: %w", err)
	}
	return n, nil
}

func nullableStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (alert.Rule, error) {
	var rule alert.Rule
	var description sql.NullString
	var conditionJSON, channelsJSON, notifyConfigJSON []byte
	var lastTriggeredAt sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description, &rule.ConditionType, &conditionJSON,
		&channelsJSON, &notifyConfigJSON, &rule.CooldownMinutes, &lastTriggeredAt,
		&rule.TriggerCount, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return alert.Rule{}, err
	}

	rule.Description = description.String
	if lastTriggeredAt.Valid {
		rule.LastTriggeredAt = &lastTriggeredAt.Time
	}
	if len(conditionJSON) > 0 {
		if err := json.Unmarshal(conditionJSON, &rule.ConditionConfig); err != nil {
			return alert.Rule{}, fmt.Errorf("unmarshaling condition_config: %w", err)
		}
	}
	if len(channelsJSON) > 0 {
		if err := json.Unmarshal(channelsJSON, &rule.NotifyChannels); err != nil {
			return alert.Rule{}, fmt.Errorf("unmarshaling notify_channels: %w", err)
		}
	}
	if len(notifyConfigJSON) > 0 {
		if err := json.Unmarshal(notifyConfigJSON, &rule.NotifyConfig); err != nil {
			return alert.Rule{}, fmt.Errorf("unmarshaling notify_config: %w", err)
		}
	}
	return rule, nil
}

func scanHistory(row rowScanner) (alert.History, error) {
	var h alert.History
	var snapshotJSON, channelsJSON []byte
	var acknowledgedBy sql.NullString
	var acknowledgedAt, resolvedAt sql.NullTime

	err := row.Scan(
		&h.ID, &h.RuleID, &h.TenantID, &h.Status, &snapshotJSON, &channelsJSON,
		&acknowledgedBy, &acknowledgedAt, &resolvedAt, &h.CreatedAt,
	)
	if err != nil {
		return alert.History{}, err
	}

	h.AcknowledgedBy = acknowledgedBy.String
	if acknowledgedAt.Valid {
		h.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		h.ResolvedAt = &resolvedAt.Time
	}
	if len(snapshotJSON) > 0 {
		if err := json.Unmarshal(snapshotJSON, &h.ConditionSnapshot); err != nil {
			return alert.History{}, fmt.Errorf("unmarshaling condition_snapshot: %w", err)
		}
	}
	if len(channelsJSON) > 0 {
		if err := json.Unmarshal(channelsJSON, &h.NotifiedVia); err != nil {
			return alert.History{}, fmt.Errorf("unmarshaling notified_via: %w", err)
		}
	}
	return h, nil
}
