package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/flowenginer/meta-hub/alert"
)

type alertActionRequest struct {
	AlertID string `json:"alert_id"`
}

// HandleAlertAcknowledge serves POST /alerts/acknowledge.
func HandleAlertAcknowledge(svc *alert.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alertActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlertID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "alert_id is required")
			return
		}

		caller, _ := CallerFromContext(r.Context())
		if err := svc.Acknowledge(r.Context(), caller.TenantID, req.AlertID, caller.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAlertResolve serves POST /alerts/resolve.
func HandleAlertResolve(svc *alert.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alertActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlertID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "alert_id is required")
			return
		}

		caller, _ := CallerFromContext(r.Context())
		if err := svc.Resolve(r.Context(), caller.TenantID, req.AlertID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
