package httpapi

import (
	"context"
	"net/http"
)

// Membership is the external collaborator RequireMembership checks
// against: given the caller and tenant the (external) auth layer already
// resolved onto the request context, does this caller belong to this
// tenant? Kept as a small interface so the real membership service can be
// wired in without touching any handler.
type Membership interface {
	IsMember(ctx context.Context, callerID, tenantID string) (bool, error)
}

// headerCaller is a development/test stand-in for the real auth
// collaborator: it trusts X-Caller-Id/X-Tenant-Id headers outright. A
// production deployment replaces this middleware with one that verifies a
// session or bearer token and sets the same Caller on the context —
// RequireMembership and every handler below it are unaffected either way.
func headerCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := Caller{
			ID:       r.Header.Get("X-Caller-Id"),
			TenantID: r.Header.Get("X-Tenant-Id"),
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireMembership rejects a request whose resolved Caller is missing, or
// isn't a member of the tenant it claims to act on.
func RequireMembership(m Membership) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok || caller.ID == "" || caller.TenantID == "" {
				writeErrorStatus(w, http.StatusUnauthorized, "missing caller or tenant")
				return
			}

			allowed, err := m.IsMember(r.Context(), caller.ID, caller.TenantID)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				writeErrorStatus(w, http.StatusForbidden, "caller is not a member of this tenant")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
