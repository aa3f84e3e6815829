package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flowenginer/meta-hub/oauth"
)

// OAuthConfig carries the handful of settings the Meta OAuth dance needs:
// client credentials and the base URL redirects go out from and back to.
// Token exchange against Meta's OAuth endpoint itself is out of scope
// (spec.md's OAuth section is specified at the interface level only) —
// these handlers only mint and verify the state parameter.
type OAuthConfig struct {
	AppID       string
	StateSecret []byte
	AppURL      string
}

const metaOAuthDialogURL = "https://www.facebook.com/v19.0/dialog/oauth"

type oauthStartRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type oauthStartResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// HandleOAuthStart serves POST /oauth/meta/start: mint a signed state
// parameter and the Meta OAuth dialog URL to redirect the browser to.
func HandleOAuthStart(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthStartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkspaceID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "workspace_id is required")
			return
		}

		caller, _ := CallerFromContext(r.Context())
		state, err := oauth.Sign(cfg.StateSecret, oauth.Payload{
			WorkspaceID: req.WorkspaceID,
			UserID:      caller.ID,
			TimestampMs: time.Now().UnixMilli(),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		q := url.Values{}
		q.Set("client_id", cfg.AppID)
		q.Set("redirect_uri", cfg.AppURL+"/oauth/meta/callback")
		q.Set("state", state)
		q.Set("scope", "whatsapp_business_messaging,leads_retrieval,pages_manage_metadata")

		writeJSON(w, http.StatusOK, oauthStartResponse{
			URL:   metaOAuthDialogURL + "?" + q.Encode(),
			State: state,
		})
	}
}

// HandleOAuthCallback serves GET /oauth/meta/callback: verify the state
// parameter Meta echoes back and redirect the browser into the UI. A
// missing code or an invalid/stale state redirects to an error page
// instead of the success page — the UI owns presenting that to the user.
func HandleOAuthCallback(cfg OAuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		payload, err := oauth.Verify(cfg.StateSecret, state, time.Now())
		if err != nil || code == "" {
			http.Redirect(w, r, cfg.AppURL+"/integrations/meta/error", http.StatusFound)
			return
		}

		dest := fmt.Sprintf("%s/integrations/meta/connected?workspace_id=%s", cfg.AppURL, url.QueryEscape(payload.WorkspaceID))
		http.Redirect(w, r, dest, http.StatusFound)
	}
}
