// Package postgres implements destination.Repository against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/destination"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (destination.Destination, error) {
	const query = `
		SELECT id, tenant_id, name, description, url, method, headers, auth_type,
		       auth_config, timeout_ms, is_active, last_used_at, deleted_at, created_at, updated_at
		FROM destinations
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	d, err := scanDestination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return destination.Destination{}, destination.ErrNotFound
	}
	if err != nil {
		return destination.Destination{}, fmt.Errorf("selecting destination: %w", err)
	}
	return d, nil
}

func (r *Repository) List(ctx context.Context, tenantID string) ([]destination.Destination, error) {
	const query = `
		SELECT id, tenant_id, name, description, url, method, headers, auth_type,
		       auth_config, timeout_ms, is_active, last_used_at, deleted_at, created_at, updated_at
		FROM destinations
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	var out []destination.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning destination: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, d destination.Destination) (destination.Destination, error) {
	headersJSON, err := json.Marshal(d.Headers)
	if err != nil {
		return destination.Destination{}, fmt.Errorf("marshaling headers: %w", err)
	}
	authJSON, err := json.Marshal(d.AuthConfig)
	if err != nil {
		return destination.Destination{}, fmt.Errorf("marshaling auth_config: %w", err)
	}

	const query = `
		INSERT INTO destinations (tenant_id, name, description, url, method, headers,
		                          auth_type, auth_config, timeout_ms, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		d.TenantID, d.Name, d.Description, d.URL, d.Method, headersJSON,
		d.AuthType, authJSON, d.TimeoutMs, d.IsActive,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return destination.Destination{}, fmt.Errorf("inserting destination: %w", err)
	}
	return d, nil
}

func (r *Repository) Update(ctx context.Context, d destination.Destination) error {
	headersJSON, err := json.Marshal(d.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}
	authJSON, err := json.Marshal(d.AuthConfig)
	if err != nil {
		return fmt.Errorf("marshaling auth_config: %w", err)
	}

	const query = `
		UPDATE destinations
		SET name = $1, description = $2, url = $3, method = $4, headers = $5,
		    auth_type = $6, auth_config = $7, timeout_ms = $8, is_active = $9, updated_at = now()
		WHERE id = $10 AND tenant_id = $11 AND deleted_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query,
		d.Name, d.Description, d.URL, d.Method, headersJSON,
		d.AuthType, authJSON, d.TimeoutMs, d.IsActive, d.ID, d.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating destination: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return destination.ErrNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) error {
	const query = `
		UPDATE destinations SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("soft-deleting destination: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading delete result: %w", err)
	}
	if affected == 0 {
		return destination.ErrNotFound
	}
	return nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, id string) error {
	const query = `UPDATE destinations SET last_used_at = now() WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touching last_used_at: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDestination(row rowScanner) (destination.Destination, error) {
	var d destination.Destination
	var headersJSON, authJSON []byte
	var description sql.NullString
	var lastUsedAt, deletedAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&d.ID, &d.TenantID, &d.Name, &description, &d.URL, &d.Method, &headersJSON,
		&d.AuthType, &authJSON, &d.TimeoutMs, &d.IsActive, &lastUsedAt, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return destination.Destination{}, err
	}

	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &d.Headers); err != nil {
			return destination.Destination{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}
	if len(authJSON) > 0 {
		if err := json.Unmarshal(authJSON, &d.AuthConfig); err != nil {
			return destination.Destination{}, fmt.Errorf("unmarshaling auth_config: %w", err)
		}
	}
	d.Description = description.String
	if lastUsedAt.Valid {
		d.LastUsedAt = &lastUsedAt.Time
	}
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	return d, nil
}
