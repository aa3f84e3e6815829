package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/flowenginer/meta-hub/event"
)

// ErrResendNotAllowed is returned when Resend is called on an event whose
// status is neither failed nor dlq.
var ErrResendNotAllowed = fmt.Errorf("delivery: resend only allowed from failed or dlq")

// Resend resets a failed or dlq event to pending with next_retry_at = now
// and bumps max_attempts by one (Open Question 2, policy b: preserving the
// attempts_count history the Alert Evaluator's consecutive_fails condition
// and the audit trail depend on, rather than resetting the counter), then
// attempts delivery once inline.
func (s *Service) Resend(ctx context.Context, tenantID, eventID string) error {
	ev, err := s.events.Get(ctx, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if ev.Status != event.StatusFailed && ev.Status != event.StatusDLQ {
		return ErrResendNotAllowed
	}

	now := time.Now()
	cleared := ""
	bumpedMax := ev.MaxAttempts + 1
	err = s.events.Transition(ctx, ev.ID, ev.Status, event.StatusPending, event.TransitionFields{
		NextRetryAt:  &now,
		ErrorMessage: &cleared,
		MaxAttempts:  &bumpedMax,
	})
	if err != nil {
		return fmt.Errorf("resetting event to pending: %w", err)
	}

	ev.Status = event.StatusPending
	ev.MaxAttempts = bumpedMax
	s.claimAndDeliver(ctx, ev)
	return nil
}
