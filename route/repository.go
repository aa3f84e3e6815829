package route

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a Route does not exist for the tenant.
var ErrNotFound = errors.New("route: not found")

// Repository persists Routes and answers the resolver's candidate query.
// FindCandidates returns every active, non-deleted route matching
// sourceType whose source_id is either sourceID or absent (catch-all); the
// Resolver applies ordering and filter_rules on top.
type Repository interface {
	Get(ctx context.Context, tenantID, id string) (Route, error)
	List(ctx context.Context, tenantID string) ([]Route, error)
	FindCandidates(ctx context.Context, tenantID, sourceType, sourceID string) ([]Route, error)
	Create(ctx context.Context, r Route) (Route, error)
	Update(ctx context.Context, r Route) error
	SoftDelete(ctx context.Context, tenantID, id string) error
	// DeactivateByDestination soft-deactivates every route referencing
	// destinationID, per the Destination deletion cascade policy.
	DeactivateByDestination(ctx context.Context, destinationID string) error
	// DetachMapping clears mapping_id on every route referencing mappingID,
	// per the Mapping deletion cascade policy (the route stays active with
	// pass-through behaviour).
	DetachMapping(ctx context.Context, mappingID string) error
}
