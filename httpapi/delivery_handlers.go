package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/flowenginer/meta-hub/delivery"
)

// HandleDeliveryProcess serves POST /delivery/process: run one synchronous
// claim-and-attempt cycle and report how many events it actually moved.
func HandleDeliveryProcess(svc *delivery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.ProcessOnce(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type resendRequest struct {
	EventID string `json:"event_id"`
}

type resendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HandleDeliveryResend serves POST /delivery/resend.
func HandleDeliveryResend(svc *delivery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "event_id is required")
			return
		}

		caller, _ := CallerFromContext(r.Context())
		if err := svc.Resend(r.Context(), caller.TenantID, req.EventID); err != nil {
			writeJSON(w, http.StatusOK, resendResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resendResponse{Success: true})
	}
}

type testRequest struct {
	DestinationID string `json:"destination_id"`
}

type testResponse struct {
	Success      bool   `json:"success"`
	StatusCode   *int   `json:"status_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// HandleDeliveryTest serves POST /delivery/test: a canned dry-run call
// against a destination with no Event Store persistence.
func HandleDeliveryTest(svc *delivery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DestinationID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "destination_id is required")
			return
		}

		caller, _ := CallerFromContext(r.Context())
		result, err := svc.Test(r.Context(), caller.TenantID, req.DestinationID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, testResponse{
			Success:      result.Success(),
			StatusCode:   result.StatusCode,
			ResponseBody: result.ResponseBody,
			DurationMs:   result.DurationMs,
			Error:        result.ErrorMessage,
		})
	}
}
