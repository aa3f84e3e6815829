// Package postgres implements logsink.Repository against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/logsink"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Write(ctx context.Context, entry logsink.EventLog) (logsink.EventLog, error) {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return logsink.EventLog{}, fmt.Errorf("marshaling metadata: %w", err)
	}

	const query = `
		INSERT INTO event_logs (tenant_id, level, category, action, message,
		                        resource_ref, metadata, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, created_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		entry.TenantID, entry.Level, entry.Category, entry.Action, entry.Message,
		nullableString(entry.ResourceRef), metadataJSON, nullableInt64(entry.DurationMs),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return logsink.EventLog{}, fmt.Errorf("writing event log: %w", err)
	}
	return entry, nil
}

func (r *Repository) Query(ctx context.Context, tenantID string, filter logsink.Filter) ([]logsink.EventLog, error) {
	query := `
		SELECT id, tenant_id, level, category, action, message, resource_ref, metadata, duration_ms, created_at
		FROM event_logs
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	idx := 2

	if filter.Level != "" {
		query += fmt.Sprintf(" AND level = $%d", idx)
		args = append(args, filter.Level)
		idx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, filter.Category)
		idx++
	}
	if filter.MessageQuery != "" {
		query += fmt.Sprintf(" AND message ILIKE $%d", idx)
		args = append(args, "%"+strings.ReplaceAll(filter.MessageQuery, "%", "")+"%")
		idx++
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event logs: %w", err)
	}
	defer rows.Close()

	var out []logsink.EventLog
	for rows.Next() {
		var e logsink.EventLog
		var resourceRef sql.NullString
		var metadataJSON []byte
		var durationMs sql.NullInt64
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Level, &e.Category, &e.Action, &e.Message,
			&resourceRef, &metadataJSON, &durationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event log: %w", err)
		}
		e.ResourceRef = resourceRef.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		if durationMs.Valid {
			d := durationMs.Int64
			e.DurationMs = &d
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
