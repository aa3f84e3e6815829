// Package postgres implements mapping.Repository against PostgreSQL, the
// same way the teacher's book/postgres package adapts a domain repository
// interface to database/sql with $-placeholders and RETURNING.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/mapping"
)

// Repository implements mapping.Repository on top of a *sql.DB.
type Repository struct {
	DB *sql.DB
}

// New wraps an already-opened *sql.DB. Connection lifecycle (pool sizing,
// pinging) is the caller's responsibility, set up once at process start.
func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (mapping.Mapping, error) {
	const query = `
		SELECT id, tenant_id, name, mode, rules, template, static_fields,
		       pass_through, source_type_hint, created_at, updated_at
		FROM mappings
		WHERE id = $1 AND tenant_id = $2
	`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.Mapping{}, mapping.ErrNotFound
	}
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("selecting mapping: %w", err)
	}
	return m, nil
}

func (r *Repository) List(ctx context.Context, tenantID string) ([]mapping.Mapping, error) {
	const query = `
		SELECT id, tenant_id, name, mode, rules, template, static_fields,
		       pass_through, source_type_hint, created_at, updated_at
		FROM mappings
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var out []mapping.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	rulesJSON, err := json.Marshal(m.Rules)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("marshaling rules: %w", err)
	}
	staticJSON, err := json.Marshal(m.StaticFields)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("marshaling static_fields: %w", err)
	}

	const query = `
		INSERT INTO mappings (tenant_id, name, mode, rules, template, static_fields,
		                       pass_through, source_type_hint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		m.TenantID, m.Name, m.Mode, rulesJSON, m.Template, staticJSON,
		m.PassThrough, m.SourceTypeHint,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("inserting mapping: %w", err)
	}
	return m, nil
}

func (r *Repository) Update(ctx context.Context, m mapping.Mapping) error {
	rulesJSON, err := json.Marshal(m.Rules)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	staticJSON, err := json.Marshal(m.StaticFields)
	if err != nil {
		return fmt.Errorf("marshaling static_fields: %w", err)
	}

	const query = `
		UPDATE mappings
		SET name = $1, mode = $2, rules = $3, template = $4, static_fields = $5,
		    pass_through = $6, source_type_hint = $7, updated_at = now()
		WHERE id = $8 AND tenant_id = $9
	`
	result, err := r.DB.ExecContext(ctx, query,
		m.Name, m.Mode, rulesJSON, m.Template, staticJSON,
		m.PassThrough, m.SourceTypeHint, m.ID, m.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM mappings WHERE id = $1 AND tenant_id = $2`
	result, err := r.DB.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading delete result: %w", err)
	}
	if affected == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which implement
// Scan with this signature.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (mapping.Mapping, error) {
	var m mapping.Mapping
	var rulesJSON, staticJSON []byte
	var template sql.NullString
	var sourceHint sql.NullString
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&m.ID, &m.TenantID, &m.Name, &m.Mode, &rulesJSON, &template, &staticJSON,
		&m.PassThrough, &sourceHint, &createdAt, &updatedAt,
	)
	if err != nil {
		return mapping.Mapping{}, err
	}

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &m.Rules); err != nil {
			return mapping.Mapping{}, fmt.Errorf("unmarshaling rules: %w", err)
		}
	}
	if len(staticJSON) > 0 {
		if err := json.Unmarshal(staticJSON, &m.StaticFields); err != nil {
			return mapping.Mapping{}, fmt.Errorf("unmarshaling static_fields: %w", err)
		}
	}
	m.Template = template.String
	m.SourceTypeHint = mapping.SourceTypeHint(sourceHint.String)
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return m, nil
}
