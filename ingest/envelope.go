package ingest

import "github.com/flowenginer/meta-hub/jsonval"

// MetaEnvelope is the top-level shape of every Meta webhook POST body,
// whether it carries WhatsApp or Lead Gen entries.
type MetaEnvelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one subscribed object (a WhatsApp Business Account, a Page) and
// the changes reported against it in this delivery.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field update within an Entry; Value's shape depends on
// Field and on the envelope's Object.
type Change struct {
	Field string         `json:"field"`
	Value map[string]any `json:"value"`
}

const (
	objectWhatsAppBusinessAccount = "whatsapp_business_account"
	objectPage                    = "page"
	fieldLeadgen                  = "leadgen"
)

// phoneNumberID extracts value.metadata.phone_number_id for a WhatsApp
// change, or "" if absent.
func phoneNumberID(value map[string]any) string {
	return jsonval.String(jsonval.Get(value, "metadata.phone_number_id"))
}

// leadFormID extracts value.form_id for a Lead Gen change, or "" if absent.
func leadFormID(value map[string]any) string {
	return jsonval.String(jsonval.Get(value, "form_id"))
}

// leadgenID extracts value.leadgen_id for a Lead Gen change, or "" if
// absent — used both for the Graph API enrichment fetch and as the
// idempotency dedup key.
func leadgenID(value map[string]any) string {
	return jsonval.String(jsonval.Get(value, "leadgen_id"))
}

// pageAccessTokenPageID extracts value.page_id, the page a Lead Gen change
// was reported against — used to look up a page-scoped access token.
func pageAccessTokenPageID(value map[string]any) string {
	return jsonval.String(jsonval.Get(value, "page_id"))
}

// whatsappEventType classifies a WhatsApp change's value into one of the
// event types the Route Resolver's filter_rules can restrict on. A change
// that carries neither a messages nor a statuses array (e.g. a template
// status callback this implementation doesn't special-case) yields "",
// which the Resolver treats as "skip filtering".
func whatsappEventType(value map[string]any) string {
	if messages, ok := value["messages"].([]any); ok && len(messages) > 0 {
		return "messages"
	}
	statuses, ok := value["statuses"].([]any)
	if !ok || len(statuses) == 0 {
		return ""
	}
	first, ok := statuses[0].(map[string]any)
	if !ok {
		return ""
	}
	switch jsonval.String(jsonval.Get(first, "status")) {
	case "sent":
		return "status_sent"
	case "delivered":
		return "status_delivered"
	case "read":
		return "status_read"
	case "failed":
		return "status_failed"
	default:
		return ""
	}
}
