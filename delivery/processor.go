// Package delivery drives DeliveryEvents through the Destination Client
// and the event state machine: the scheduled process cycle, user-initiated
// resend, and the destination dry-run test.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/logsink"
)

const maxClaimBatch = 50

// attemptOutcome is how one claimAndDeliver call resolved, used by
// ProcessOnce to tally the counts the manual /delivery/process endpoint
// reports. The scheduled Process cycle and Submit ignore it — they are
// fire-and-forget by design.
type attemptOutcome int

const (
	outcomeSkipped attemptOutcome = iota // lost the claim race; not counted as processed
	outcomeDelivered
	outcomeFailed // failed, dlq, or cancelled for an inactive destination
)

// firstAttemptTimeout bounds the Webhook Receiver's best-effort inline claim
// attempt (SPEC §4.E/§9 Open Question 4): the HTTP response to Meta has
// already gone out by the time this runs, so it gets its own short deadline
// rather than inheriting the request context.
const firstAttemptTimeout = 8 * time.Second

// Service ties the Event Store, Destination repository/client and Log Sink
// together for the process/resend/test entry points. It is safe to share
// across goroutines — each method either reads snapshots or uses the Event
// Store's own optimistic concurrency.
type Service struct {
	events       event.Repository
	destinations destination.Repository
	client       *destination.Client
	logs         logsink.Repository
	pool         *tenantPool
	logger       *zap.Logger
}

// NewService builds a Service. perTenantConcurrency <= 0 uses the default
// (32).
func NewService(events event.Repository, destinations destination.Repository, client *destination.Client, logs logsink.Repository, perTenantConcurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		events:       events,
		destinations: destinations,
		client:       client,
		logs:         logs,
		pool:         newTenantPool(perTenantConcurrency, logger),
		logger:       logger,
	}
}

// Process is the scheduled process cycle: claim up to 50 ready events and
// drive each one through a single delivery attempt, dispatched into the
// per-tenant bounded pool. A claim or attempt failure for one event never
// blocks the others.
func (s *Service) Process(ctx context.Context) error {
	pending, err := s.events.QueryByStatus(ctx, event.StatusPending, time.Now(), maxClaimBatch)
	if err != nil {
		return fmt.Errorf("querying pending events: %w", err)
	}
	failed, err := s.events.QueryByStatus(ctx, event.StatusFailed, time.Now(), maxClaimBatch)
	if err != nil {
		return fmt.Errorf("querying failed events: %w", err)
	}

	candidates := append(pending, failed...)
	if len(candidates) > maxClaimBatch {
		candidates = candidates[:maxClaimBatch]
	}

	for _, e := range candidates {
		ev := e
		submitted := s.pool.TrySubmit(ev.TenantID, func() {
			s.claimAndDeliver(ctx, ev)
		})
		if !submitted {
			// Tenant's pool is saturated; leave it pending/failed for the
			// next tick. This is an ordinary outcome, not a failure.
			continue
		}
	}
	return nil
}

// Submit offers ev to the same per-tenant bounded pool the process cycle
// dispatches into, for a best-effort first claim-and-deliver attempt. It
// never blocks the caller: a saturated pool or a lost claim race are both
// ordinary "leave it for the next process tick" outcomes, not failures.
func (s *Service) Submit(ev event.DeliveryEvent) {
	s.pool.TrySubmit(ev.TenantID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), firstAttemptTimeout)
		defer cancel()
		s.claimAndDeliver(ctx, ev)
	})
}

// claimAndDeliver atomically claims ev (pending|failed -> processing, with
// an attempts_count bump) and, if the claim wins, drives one delivery
// attempt. A lost claim (ErrConflict) means another worker got there
// first and is silently skipped.
func (s *Service) claimAndDeliver(ctx context.Context, ev event.DeliveryEvent) attemptOutcome {
	attemptsCount := ev.AttemptsCount + 1
	err := s.events.Transition(ctx, ev.ID, ev.Status, event.StatusProcessing, event.TransitionFields{
		AttemptsCount: &attemptsCount,
	})
	if err != nil {
		if err != event.ErrConflict {
			s.logger.Error("claiming delivery event failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
		return outcomeSkipped
	}
	ev.AttemptsCount = attemptsCount
	ev.Status = event.StatusProcessing

	return s.deliver(ctx, ev)
}

// deliver loads the event's destination and drives exactly one attempt
// through the Destination Client, then applies the success/failure/backoff
// transition rules.
func (s *Service) deliver(ctx context.Context, ev event.DeliveryEvent) attemptOutcome {
	dest, err := s.destinations.Get(ctx, ev.TenantID, ev.DestinationID)
	if err != nil || !dest.IsActive {
		s.cancelInactiveDestination(ctx, ev)
		return outcomeFailed
	}

	body := deliveryBody(ev)
	result := s.client.Call(ctx, dest, ev.ID, ev.AttemptsCount, body)

	_, attemptErr := s.events.AppendAttempt(ctx, event.DeliveryAttempt{
		EventID:       ev.ID,
		AttemptNumber: ev.AttemptsCount,
		RequestURL:    dest.URL,
		RequestMethod: string(dest.Method),
		StatusCode:    result.StatusCode,
		ResponseBody:  result.ResponseBody,
		ErrorMessage:  result.ErrorMessage,
		DurationMs:    result.DurationMs,
	})
	if attemptErr != nil {
		s.logger.Error("appending delivery attempt failed", zap.String("event_id", ev.ID), zap.Error(attemptErr))
	}
	_ = s.destinations.TouchLastUsed(ctx, dest.ID)

	if result.Success() {
		s.markDelivered(ctx, ev)
		return outcomeDelivered
	}
	s.markFailure(ctx, ev, result)
	return outcomeFailed
}

func deliveryBody(ev event.DeliveryEvent) []byte {
	payload := ev.Payload
	if ev.TransformedPayload != nil {
		payload = ev.TransformedPayload
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func (s *Service) markDelivered(ctx context.Context, ev event.DeliveryEvent) {
	now := time.Now()
	cleared := ""
	err := s.events.Transition(ctx, ev.ID, event.StatusProcessing, event.StatusDelivered, event.TransitionFields{
		DeliveredAt:  &now,
		ErrorMessage: &cleared,
	})
	if err != nil && err != event.ErrConflict {
		s.logger.Error("marking event delivered failed", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	s.writeLog(ctx, ev.TenantID, logsink.LevelInfo, "delivery.succeeded", ev.ID, nil)
}

func (s *Service) markFailure(ctx context.Context, ev event.DeliveryEvent, result destination.AttemptResult) {
	errMsg := result.ErrorMessage
	if errMsg == "" {
		errMsg = fmt.Sprintf("unexpected response status %d", statusOrZero(result.StatusCode))
	}

	if ev.AttemptsCount >= ev.MaxAttempts {
		err := s.events.Transition(ctx, ev.ID, event.StatusProcessing, event.StatusDLQ, event.TransitionFields{
			ErrorMessage: &errMsg,
		})
		if err != nil && err != event.ErrConflict {
			s.logger.Error("moving event to dlq failed", zap.String("event_id", ev.ID), zap.Error(err))
			return
		}
		s.writeLog(ctx, ev.TenantID, logsink.LevelError, "delivery.dlq", ev.ID, map[string]any{"error": errMsg})
		return
	}

	backoff := BackoffDuration(ev.AttemptsCount)
	nextRetry := time.Now().Add(backoff)
	err := s.events.Transition(ctx, ev.ID, event.StatusProcessing, event.StatusFailed, event.TransitionFields{
		NextRetryAt:  &nextRetry,
		ErrorMessage: &errMsg,
	})
	if err != nil && err != event.ErrConflict {
		s.logger.Error("marking event failed failed", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	s.writeLog(ctx, ev.TenantID, logsink.LevelWarn, "delivery.failed", ev.ID, map[string]any{"error": errMsg, "next_retry_at": nextRetry})
}

func (s *Service) cancelInactiveDestination(ctx context.Context, ev event.DeliveryEvent) {
	reason := "Destination inactive"
	err := s.events.Transition(ctx, ev.ID, event.StatusProcessing, event.StatusCancelled, event.TransitionFields{
		ErrorMessage: &reason,
	})
	if err != nil && err != event.ErrConflict {
		s.logger.Error("cancelling event for inactive destination failed", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	s.writeLog(ctx, ev.TenantID, logsink.LevelWarn, "delivery.cancelled", ev.ID, map[string]any{"reason": reason})
}

func (s *Service) writeLog(ctx context.Context, tenantID string, level logsink.Level, action, resourceRef string, metadata map[string]any) {
	if s.logs == nil {
		return
	}
	_, err := s.logs.Write(ctx, logsink.EventLog{
		TenantID:    tenantID,
		Level:       level,
		Category:    logsink.CategoryDelivery,
		Action:      action,
		Message:     action,
		ResourceRef: resourceRef,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger.Warn("writing log sink entry failed", zap.Error(err))
	}
}

func statusOrZero(code *int) int {
	if code == nil {
		return 0
	}
	return *code
}
