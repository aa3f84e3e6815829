// Package postgres implements route.Repository against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/route"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (route.Route, error) {
	const query = `
		SELECT id, tenant_id, label, source_type, source_id, destination_id, mapping_id,
		       filter_rules, priority, is_active, deleted_at, created_at, updated_at
		FROM routes
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	row := r.DB.QueryRowContext(ctx, query, id, tenantID)
	rt, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return route.Route{}, route.ErrNotFound
	}
	if err != nil {
		return route.Route{}, fmt.Errorf("selecting route: %w", err)
	}
	return rt, nil
}

func (r *Repository) List(ctx context.Context, tenantID string) ([]route.Route, error) {
	const query = `
		SELECT id, tenant_id, label, source_type, source_id, destination_id, mapping_id,
		       filter_rules, priority, is_active, deleted_at, created_at, updated_at
		FROM routes
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY priority DESC, created_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}
	defer rows.Close()

	var out []route.Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// FindCandidates returns every active route matching sourceType whose
// source_id is either sourceID or absent (catch-all). Ordering and
// filter_rules are applied by route.Resolver, not here.
func (r *Repository) FindCandidates(ctx context.Context, tenantID, sourceType, sourceID string) ([]route.Route, error) {
	const query = `
		SELECT id, tenant_id, label, source_type, source_id, destination_id, mapping_id,
		       filter_rules, priority, is_active, deleted_at, created_at, updated_at
		FROM routes
		WHERE tenant_id = $1 AND source_type = $2 AND is_active = true AND deleted_at IS NULL
		  AND (source_id = $3 OR source_id IS NULL OR source_id = '')
	`
	rows, err := r.DB.QueryContext(ctx, query, tenantID, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("finding route candidates: %w", err)
	}
	defer rows.Close()

	var out []route.Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, rt route.Route) (route.Route, error) {
	filterJSON, err := marshalFilterRules(rt.FilterRules)
	if err != nil {
		return route.Route{}, err
	}

	const query = `
		INSERT INTO routes (tenant_id, label, source_type, source_id, destination_id, mapping_id,
		                     filter_rules, priority, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		rt.TenantID, rt.Label, rt.SourceType, nullableString(rt.SourceID), rt.DestinationID,
		nullableString(rt.MappingID), filterJSON, rt.Priority, rt.IsActive,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return route.Route{}, fmt.Errorf("inserting route: %w", err)
	}
	return rt, nil
}

func (r *Repository) Update(ctx context.Context, rt route.Route) error {
	filterJSON, err := marshalFilterRules(rt.FilterRules)
	if err != nil {
		return err
	}

	const query = `
		UPDATE routes
		SET label = $1, source_type = $2, source_id = $3, destination_id = $4, mapping_id = $5,
		    filter_rules = $6, priority = $7, is_active = $8, updated_at = now()
		WHERE id = $9 AND tenant_id = $10 AND deleted_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query,
		rt.Label, rt.SourceType, nullableString(rt.SourceID), rt.DestinationID,
		nullableString(rt.MappingID), filterJSON, rt.Priority, rt.IsActive, rt.ID, rt.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating route: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return route.ErrNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) error {
	const query = `
		UPDATE routes SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("soft-deleting route: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading delete result: %w", err)
	}
	if affected == 0 {
		return route.ErrNotFound
	}
	return nil
}

func (r *Repository) DeactivateByDestination(ctx context.Context, destinationID string) error {
	const query = `
		UPDATE routes SET is_active = false, updated_at = now()
		WHERE destination_id = $1 AND deleted_at IS NULL
	`
	_, err := r.DB.ExecContext(ctx, query, destinationID)
	if err != nil {
		return fmt.Errorf("deactivating routes by destination: %w", err)
	}
	return nil
}

func (r *Repository) DetachMapping(ctx context.Context, mappingID string) error {
	const query = `
		UPDATE routes SET mapping_id = NULL, updated_at = now()
		WHERE mapping_id = $1 AND deleted_at IS NULL
	`
	_, err := r.DB.ExecContext(ctx, query, mappingID)
	if err != nil {
		return fmt.Errorf("detaching mapping from routes: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalFilterRules(f *route.FilterRules) ([]byte, error) {
	normalized := route.NormalizeFilterRules(f)
	if normalized == nil {
		return nil, nil
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("marshaling filter_rules: %w", err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (route.Route, error) {
	var rt route.Route
	var label, sourceID, mappingID sql.NullString
	var filterJSON []byte
	var deletedAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&rt.ID, &rt.TenantID, &label, &rt.SourceType, &sourceID, &rt.DestinationID, &mappingID,
		&filterJSON, &rt.Priority, &rt.IsActive, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return route.Route{}, err
	}

	rt.Label = label.String
	rt.SourceID = sourceID.String
	rt.MappingID = mappingID.String
	if len(filterJSON) > 0 {
		var fr route.FilterRules
		if err := json.Unmarshal(filterJSON, &fr); err != nil {
			return route.Route{}, fmt.Errorf("unmarshaling filter_rules: %w", err)
		}
		rt.FilterRules = route.NormalizeFilterRules(&fr)
	}
	if deletedAt.Valid {
		rt.DeletedAt = &deletedAt.Time
	}
	rt.CreatedAt = createdAt
	rt.UpdatedAt = updatedAt
	return rt, nil
}
