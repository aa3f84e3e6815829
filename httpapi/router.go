// Package httpapi is meta-hub's HTTP edge: it owns chi routing, the
// request-logging/recovery/timeout middleware chain, tenant membership
// enforcement, and translating domain sentinel errors into status codes.
// Nothing below this package knows about HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/flowenginer/meta-hub/alert"
	"github.com/flowenginer/meta-hub/delivery"
	"github.com/flowenginer/meta-hub/ingest"
)

const requestTimeout = 30 * time.Second

// Dependencies bundles everything the router needs to mount handlers. A nil
// Ingest, Delivery or Alert leaves that component's endpoints unmounted, so
// a partially-wired deployment doesn't need a fully-populated struct; the
// OAuth and /transform/preview endpoints are always mounted, and a nil
// Membership mounts tenant-scoped endpoints without the membership check.
type Dependencies struct {
	Ingest     *ingest.Service
	Delivery   *delivery.Service
	Alert      *alert.Service
	Membership Membership
	OAuth      OAuthConfig
}

// NewRouter builds the chi.Mux serving spec.md §6's endpoint table, in the
// teacher's own Handlers(...) *chi.Mux shape (internal/http/chi/handlers.go):
// an httplog.NewLogger with JSON output, httplog.RequestLogger as the first
// middleware, generalized with chi's own Recoverer and Timeout.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := httplog.NewLogger("meta-hub", httplog.Options{JSON: true})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	if deps.Ingest != nil {
		r.Method(http.MethodGet, "/webhook/meta", ingest.HandleChallenge(deps.Ingest))
		r.Method(http.MethodPost, "/webhook/meta", ingest.HandleEnvelope(deps.Ingest))
	}

	r.Method(http.MethodPost, "/oauth/meta/start", withTenant(deps, HandleOAuthStart(deps.OAuth)))
	r.Method(http.MethodGet, "/oauth/meta/callback", HandleOAuthCallback(deps.OAuth))

	if deps.Delivery != nil {
		r.Method(http.MethodPost, "/delivery/process", withTenant(deps, HandleDeliveryProcess(deps.Delivery)))
		r.Method(http.MethodPost, "/delivery/resend", withTenant(deps, HandleDeliveryResend(deps.Delivery)))
		r.Method(http.MethodPost, "/delivery/test", withTenant(deps, HandleDeliveryTest(deps.Delivery)))
	}

	r.Method(http.MethodPost, "/transform/preview", withTenant(deps, http.HandlerFunc(HandleTransformPreview)))

	if deps.Alert != nil {
		r.Method(http.MethodPost, "/alerts/acknowledge", withTenant(deps, HandleAlertAcknowledge(deps.Alert)))
		r.Method(http.MethodPost, "/alerts/resolve", withTenant(deps, HandleAlertResolve(deps.Alert)))
	}

	return r
}

// withTenant wraps h with the caller-resolution and membership-check chain
// every tenant-scoped endpoint runs through.
func withTenant(deps Dependencies, h http.Handler) http.Handler {
	chain := h
	if deps.Membership != nil {
		chain = RequireMembership(deps.Membership)(chain)
	}
	return headerCaller(chain)
}
