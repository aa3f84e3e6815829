// Package logsink is the append-only structured log of categorized events
// per tenant, queryable and filterable. There is no deletion API;
// retention is a deployment concern.
package logsink

import "time"

// Level is the closed set of severities an EventLog entry may carry.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Category is the closed set of subsystems an EventLog entry may belong to.
type Category string

const (
	CategoryWebhook  Category = "webhook"
	CategoryDelivery Category = "delivery"
	CategoryOAuth    Category = "oauth"
	CategoryWhatsApp Category = "whatsapp"
	CategoryMapping  Category = "mapping"
	CategorySystem   Category = "system"
	CategoryBilling  Category = "billing"
	CategoryAuth     Category = "auth"
	CategoryAlert    Category = "alert"
)

// EventLog is one append-only structured log entry.
type EventLog struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Level       Level          `json:"level"`
	Category    Category       `json:"category"`
	Action      string         `json:"action"`
	Message     string         `json:"message"`
	ResourceRef string         `json:"resource_ref,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DurationMs  *int64         `json:"duration_ms,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
