package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowenginer/meta-hub/alert"
	"github.com/flowenginer/meta-hub/delivery"
	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/ingest"
	"github.com/flowenginer/meta-hub/mapping"
	"github.com/flowenginer/meta-hub/route"
)

// writeError maps a domain sentinel error to the status code spec.md's
// endpoint table implies, the way the teacher's handlers inspect a
// postgres.ErrNotFound directly rather than going through a shared
// "kind" indirection. Everything below this package stays HTTP-agnostic.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound),
		errors.Is(err, route.ErrNotFound),
		errors.Is(err, mapping.ErrNotFound),
		errors.Is(err, destination.ErrNotFound),
		errors.Is(err, alert.ErrNotFound),
		errors.Is(err, ingest.ErrTenantNotFound):
		writeErrorStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, event.ErrConflict):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	case errors.Is(err, delivery.ErrResendNotAllowed),
		errors.Is(err, alert.ErrInvalidLifecycle):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	default:
		writeErrorStatus(w, http.StatusInternalServerError, err.Error())
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
