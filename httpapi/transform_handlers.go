package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flowenginer/meta-hub/mapping"
)

type transformPreviewRequest struct {
	Rules        []mapping.MappingRule `json:"rules,omitempty"`
	Payload      any                   `json:"payload"`
	StaticFields map[string]any        `json:"static_fields,omitempty"`
	Mode         mapping.Mode          `json:"mode"`
	Template     string                `json:"template,omitempty"`
	PassThrough  bool                  `json:"pass_through"`
}

type transformPreviewResponse struct {
	Success    bool     `json:"success"`
	Output     any      `json:"output,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// HandleTransformPreview serves POST /transform/preview: run the Mapping
// Engine against a rule set and sample payload with no persistence, for
// the editor's live preview.
func HandleTransformPreview(w http.ResponseWriter, r *http.Request) {
	var req transformPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m := mapping.Mapping{
		Mode:         req.Mode,
		Rules:        req.Rules,
		Template:     req.Template,
		StaticFields: req.StaticFields,
		PassThrough:  req.PassThrough,
	}

	start := time.Now()
	result, err := mapping.Apply(m, req.Payload)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		writeJSON(w, http.StatusOK, transformPreviewResponse{Success: false, Error: err.Error(), DurationMs: duration})
		return
	}
	writeJSON(w, http.StatusOK, transformPreviewResponse{Success: true, Output: result.Output, Warnings: result.Warnings, DurationMs: duration})
}
