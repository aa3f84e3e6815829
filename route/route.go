// Package route binds inbound sources to a Destination (and optional
// Mapping) and resolves the ordered set of matching active routes for an
// inbound event.
package route

import "time"

// WhatsAppEventType is the closed set of values route.FilterRules.EventTypes
// may restrict a WhatsApp route to.
type WhatsAppEventType string

const (
	EventMessages         WhatsAppEventType = "messages"
	EventStatusSent       WhatsAppEventType = "status_sent"
	EventStatusDelivered  WhatsAppEventType = "status_delivered"
	EventStatusRead       WhatsAppEventType = "status_read"
	EventStatusFailed     WhatsAppEventType = "status_failed"
)

// FilterRules is the only defined filter today: an optional allow-list of
// WhatsApp event types. A nil FilterRules (or an equivalent empty one,
// normalized to nil at the repository boundary per Open Question 1) means
// "accept all events".
type FilterRules struct {
	EventTypes []WhatsAppEventType `json:"event_types,omitempty"`
}

// Matches reports whether eventType passes f. A nil FilterRules always
// matches.
func (f *FilterRules) Matches(eventType string) bool {
	if f == nil || len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if string(t) == eventType {
			return true
		}
	}
	return false
}

// NormalizeFilterRules collapses a JSON null or an empty-list/empty-object
// FilterRules to nil, so the resolver only ever sees "absent" or
// "populated" (Open Question 1).
func NormalizeFilterRules(f *FilterRules) *FilterRules {
	if f == nil {
		return nil
	}
	if len(f.EventTypes) == 0 {
		return nil
	}
	return f
}

// Route binds a source to a Destination and optionally a Mapping.
type Route struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	Label         string       `json:"label,omitempty"`
	SourceType    string       `json:"source_type"`
	SourceID      string       `json:"source_id,omitempty"` // absent = catch-all
	DestinationID string       `json:"destination_id"`
	MappingID     string       `json:"mapping_id,omitempty"`
	FilterRules   *FilterRules `json:"filter_rules,omitempty"`
	Priority      int          `json:"priority"` // 0..100
	IsActive      bool         `json:"is_active"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsCatchAll reports whether r matches any source_id for its source_type.
func (r Route) IsCatchAll() bool {
	return r.SourceID == ""
}
