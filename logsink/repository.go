package logsink

import "context"

// Filter narrows a Query: zero-value fields are unconstrained.
type Filter struct {
	Level      Level
	Category   Category
	MessageQuery string // matched with ILIKE %query%
	Limit      int
}

// Repository is the append-only log's storage boundary. There is
// deliberately no delete/update method.
type Repository interface {
	Write(ctx context.Context, entry EventLog) (EventLog, error)
	Query(ctx context.Context, tenantID string, filter Filter) ([]EventLog, error)
}
