package destination

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a Destination does not exist for the tenant.
var ErrNotFound = errors.New("destination: not found")

// Repository persists Destinations. Deletion is soft (DeletedAt) per the
// data model's cascade-on-delete note in route resolution.
type Repository interface {
	Get(ctx context.Context, tenantID, id string) (Destination, error)
	List(ctx context.Context, tenantID string) ([]Destination, error)
	Create(ctx context.Context, d Destination) (Destination, error)
	Update(ctx context.Context, d Destination) error
	SoftDelete(ctx context.Context, tenantID, id string) error
	TouchLastUsed(ctx context.Context, id string) error
}
