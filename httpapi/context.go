package httpapi

import "context"

type ctxKey int

const callerContextKey ctxKey = iota

// Caller is who is making the request and which tenant they're acting on
// behalf of, as resolved by the (external) auth collaborator — meta-hub's
// own code never verifies credentials, only reads this off the context.
type Caller struct {
	ID       string
	TenantID string
}

// WithCaller attaches c to ctx for downstream middleware/handlers to read.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, c)
}

// CallerFromContext reads back the Caller attached by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(Caller)
	return c, ok
}
