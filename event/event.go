// Package event models the DeliveryEvent/DeliveryAttempt durable record and
// its status state machine — the core ledger every other component reads
// from or writes into.
package event

import "time"

// DeliveryEvent is one unit of forwardable payload, carried through the
// pending/processing/delivered/failed/dlq/cancelled state machine.
type DeliveryEvent struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	RouteID             string         `json:"route_id"`
	DestinationID      string         `json:"destination_id"`
	SourceType         string         `json:"source_type"`
	SourceEventID      string         `json:"source_event_id,omitempty"` // observability only, not dedup
	IdempotencyKey     string         `json:"idempotency_key,omitempty"`
	Payload            any            `json:"payload"`
	TransformedPayload any            `json:"transformed_payload,omitempty"`
	Status             Status         `json:"status"`
	AttemptsCount      int            `json:"attempts_count"`
	MaxAttempts        int            `json:"max_attempts"` // default 5
	NextRetryAt        *time.Time     `json:"next_retry_at,omitempty"`
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`
	FailedAt           *time.Time     `json:"failed_at,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// DefaultMaxAttempts is used when a DeliveryEvent is created without an
// explicit max_attempts.
const DefaultMaxAttempts = 5

// DeliveryAttempt is an immutable, append-only child of a DeliveryEvent.
// AttemptNumber is 1-based and dense: at most MaxAttempts rows per event.
type DeliveryAttempt struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	AttemptNumber int       `json:"attempt_number"`
	RequestURL    string    `json:"request_url"`
	RequestMethod string    `json:"request_method"`
	StatusCode    *int      `json:"status_code,omitempty"` // absent on network error
	ResponseBody  string    `json:"response_body,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// StatsWindow is an aggregate snapshot over a trailing time window, used by
// the Alert Evaluator's error_rate and latency_threshold conditions.
type StatsWindow struct {
	TenantID      string
	WindowHours   int
	TotalEvents   int
	Delivered     int
	Failed        int
	DLQ           int
	AvgLatencyMs  float64
	P95LatencyMs  float64
}

// ErrorRate returns Failed+DLQ as a fraction of TotalEvents, or 0 when no
// events were observed in the window.
func (s StatsWindow) ErrorRate() float64 {
	if s.TotalEvents == 0 {
		return 0
	}
	return float64(s.Failed+s.DLQ) / float64(s.TotalEvents)
}
