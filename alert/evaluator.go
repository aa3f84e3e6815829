package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/logsink"
	"github.com/flowenginer/meta-hub/route"
)

// Service evaluates active rules against the Event Store on demand and
// drives the resulting History lifecycle.
type Service struct {
	rules    Repository
	events   event.Repository
	routes   route.Repository
	logs     logsink.Repository
	cooldown *CooldownCache
	notifier *Notifier
	logger   *zap.Logger
}

// NewService builds a Service. cooldown and notifier may be nil: a nil
// cooldown cache degrades to the Postgres-only check, and a nil notifier
// disables notification dispatch entirely (the History row is still
// recorded).
func NewService(rules Repository, events event.Repository, routes route.Repository, logs logsink.Repository, cooldown *CooldownCache, notifier *Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rules:    rules,
		events:   events,
		routes:   routes,
		logs:     logs,
		cooldown: cooldown,
		notifier: notifier,
		logger:   logger,
	}
}

// Evaluate runs one pass over every active rule. A single rule's failure is
// logged and never blocks the others (spec.md §4.H's per-rule isolation).
func (s *Service) Evaluate(ctx context.Context) error {
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("listing active rules: %w", err)
	}

	for _, r := range rules {
		if err := s.evaluateRule(ctx, r); err != nil {
			s.logger.Error("evaluating alert rule failed", zap.String("rule_id", r.ID), zap.Error(err))
			s.writeLog(ctx, r.TenantID, logsink.LevelError, "alert.evaluation_failed", r.ID, map[string]any{"error": err.Error()})
		}
	}
	return nil
}

func (s *Service) evaluateRule(ctx context.Context, r Rule) error {
	if s.inCooldown(ctx, r) {
		return nil
	}

	eval, err := evaluateCondition(ctx, r, s.events, s.routes)
	if err != nil {
		return err
	}
	if !eval.Fired {
		return nil
	}

	return s.fire(ctx, r, eval)
}

func (s *Service) inCooldown(ctx context.Context, r Rule) bool {
	if r.LastTriggeredAt != nil {
		cooldownEnd := r.LastTriggeredAt.Add(time.Duration(r.CooldownMinutes) * time.Minute)
		if time.Now().Before(cooldownEnd) {
			return true
		}
	}
	return s.cooldown.InCooldown(ctx, r.ID)
}

func (s *Service) fire(ctx context.Context, r Rule, eval evaluation) error {
	history, err := s.rules.CreateHistory(ctx, History{
		RuleID:            r.ID,
		TenantID:          r.TenantID,
		Status:            HistoryTriggered,
		ConditionSnapshot: eval.Snapshot,
	})
	if err != nil {
		return fmt.Errorf("recording alert history: %w", err)
	}

	var notified []NotifyChannel
	if s.notifier != nil {
		notified = s.notifier.Dispatch(ctx, history, r)
	}
	if err := s.rules.UpdateHistoryStatus(ctx, history.ID, HistoryTriggered, HistoryUpdate{NotifiedVia: notified}); err != nil {
		s.logger.Warn("recording notified_via failed", zap.String("history_id", history.ID), zap.Error(err))
	}

	now := time.Now()
	if err := s.rules.RecordTrigger(ctx, r.ID, now); err != nil {
		s.logger.Warn("recording rule trigger failed", zap.String("rule_id", r.ID), zap.Error(err))
	}
	s.cooldown.MarkTriggered(ctx, r.ID, r.CooldownMinutes)

	s.writeLog(ctx, r.TenantID, logsink.LevelWarn, "alert.triggered", r.ID, eval.Snapshot)
	return nil
}

// Acknowledge moves a triggered alert to acknowledged, recording who did
// it. Acknowledging from any other status is rejected.
func (s *Service) Acknowledge(ctx context.Context, tenantID, historyID, userID string) error {
	h, err := s.rules.GetHistory(ctx, tenantID, historyID)
	if err != nil {
		return err
	}
	if h.Status != HistoryTriggered {
		return ErrInvalidLifecycle
	}

	now := time.Now()
	return s.rules.UpdateHistoryStatus(ctx, historyID, HistoryAcknowledged, HistoryUpdate{
		AcknowledgedBy: &userID,
		AcknowledgedAt: &now,
	})
}

// Resolve moves a triggered or acknowledged alert to resolved. Resolving a
// resolved alert, or one that doesn't exist, is rejected.
func (s *Service) Resolve(ctx context.Context, tenantID, historyID string) error {
	h, err := s.rules.GetHistory(ctx, tenantID, historyID)
	if err != nil {
		return err
	}
	if h.Status != HistoryTriggered && h.Status != HistoryAcknowledged {
		return ErrInvalidLifecycle
	}

	now := time.Now()
	return s.rules.UpdateHistoryStatus(ctx, historyID, HistoryResolved, HistoryUpdate{ResolvedAt: &now})
}

func (s *Service) writeLog(ctx context.Context, tenantID string, level logsink.Level, action, resourceRef string, metadata map[string]any) {
	if s.logs == nil {
		return
	}
	_, err := s.logs.Write(ctx, logsink.EventLog{
		TenantID:    tenantID,
		Level:       level,
		Category:    logsink.CategoryAlert,
		Action:      action,
		Message:     action,
		ResourceRef: resourceRef,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger.Warn("writing log sink entry failed", zap.Error(err))
	}
}
