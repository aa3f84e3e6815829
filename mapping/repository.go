package mapping

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repository when a Mapping does not exist for
// the given tenant.
var ErrNotFound = errors.New("mapping: not found")

// Repository persists named, reusable Mappings per tenant. The engine
// itself never touches a Repository — Apply stays pure.
type Repository interface {
	Get(ctx context.Context, tenantID, id string) (Mapping, error)
	List(ctx context.Context, tenantID string) ([]Mapping, error)
	Create(ctx context.Context, m Mapping) (Mapping, error)
	Update(ctx context.Context, m Mapping) error
	Delete(ctx context.Context, tenantID, id string) error
}
