package ingest

import (
	"context"
	"errors"
)

// ErrTenantNotFound is returned when no tenant owns the given channel-scoped
// source id — e.g. a phone_number_id or form_id the workspace never
// connected, or disconnected since.
var ErrTenantNotFound = errors.New("ingest: tenant not found for source")

// TenantResolver maps a channel-scoped source id (a WhatsApp phone number
// id, a Lead Gen form id) to the tenant whose Integration enumerated it.
// Integration/MetaResource storage itself is an external collaborator
// (spec.md §3); this is the one read path the receiver needs from it.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, sourceType, sourceID string) (tenantID string, err error)
}

// TokenSource returns the best available Meta Graph API access token for a
// tenant's Lead Gen enrichment fetch: a page-scoped token when the
// Integration recorded one for pageID, else the tenant's own long-lived
// token.
type TokenSource interface {
	AccessToken(ctx context.Context, tenantID, pageID string) (token string, err error)
}
