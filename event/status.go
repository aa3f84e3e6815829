package event

import "fmt"

// Status is the closed set of DeliveryEvent lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusDLQ        Status = "dlq"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether s has no further transitions other than a
// manual resend (dlq) or none at all (delivered, cancelled). failed is not
// terminal: it is retried on schedule.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusDLQ, StatusCancelled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates every (from, to) edge in the state machine.
// pending->processing (pick), processing->delivered (success),
// processing->failed (failure, attempts < max), processing->dlq (failure,
// attempts == max), failed->pending (scheduled retry), {failed,dlq}->pending
// (user resend), {pending,processing,failed}->cancelled (user cancel).
var validTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusDelivered: true, StatusFailed: true, StatusDLQ: true, StatusCancelled: true},
	StatusFailed:     {StatusPending: true, StatusCancelled: true},
	StatusDLQ:        {StatusPending: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ErrInvalidTransition is returned when a caller requests a transition the
// state machine does not permit.
type ErrInvalidTransition struct {
	From, To Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("event: invalid transition %s -> %s", e.From, e.To)
}
