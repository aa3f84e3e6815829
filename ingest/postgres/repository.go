// Package postgres implements the receiver's two small read-only interfaces
// (ingest.TenantResolver, ingest.TokenSource) against the Integration and
// MetaResource tables spec.md §3 describes as the external OAuth
// collaborator's storage — the receiver only ever reads from them.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/flowenginer/meta-hub/ingest"
)

// resourceTypeFor maps the Route Resolver's source_type vocabulary onto the
// MetaResource rows enumerated during the OAuth dance.
var resourceTypeFor = map[string]string{
	"whatsapp": "whatsapp_phone",
	"forms":    "lead_form",
}

// Repository implements ingest.TenantResolver and ingest.TokenSource on top
// of a *sql.DB.
type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// ResolveTenant looks up the tenant that enumerated sourceID as a resource
// of the kind matching sourceType during its Meta OAuth connection.
func (r *Repository) ResolveTenant(ctx context.Context, sourceType, sourceID string) (string, error) {
	resourceType, ok := resourceTypeFor[sourceType]
	if !ok {
		return "", ingest.ErrTenantNotFound
	}

	const query = `
		SELECT i.tenant_id
		FROM meta_resources r
		JOIN integrations i ON i.id = r.integration_id
		WHERE r.resource_type = $1 AND r.provider_id = $2
		LIMIT 1
	`
	var tenantID string
	err := r.DB.QueryRowContext(ctx, query, resourceType, sourceID).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ingest.ErrTenantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving tenant for %s/%s: %w", sourceType, sourceID, err)
	}
	return tenantID, nil
}

// AccessToken prefers a page-scoped token recorded against pageID, falling
// back to the tenant's own long-lived integration token when pageID is
// empty or carries none.
func (r *Repository) AccessToken(ctx context.Context, tenantID, pageID string) (string, error) {
	if pageID != "" {
		const pageQuery = `
			SELECT r.page_access_token
			FROM meta_resources r
			JOIN integrations i ON i.id = r.integration_id
			WHERE i.tenant_id = $1 AND r.resource_type = 'page' AND r.provider_id = $2
				AND r.page_access_token IS NOT NULL
			LIMIT 1
		`
		var token sql.NullString
		err := r.DB.QueryRowContext(ctx, pageQuery, tenantID, pageID).Scan(&token)
		if err == nil && token.Valid && token.String != "" {
			return token.String, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("looking up page access token: %w", err)
		}
	}

	const tenantQuery = `SELECT access_token FROM integrations WHERE tenant_id = $1 LIMIT 1`
	var token string
	err := r.DB.QueryRowContext(ctx, tenantQuery, tenantID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no integration on file for tenant %s", tenantID)
	}
	if err != nil {
		return "", fmt.Errorf("looking up tenant access token: %w", err)
	}
	return token, nil
}
