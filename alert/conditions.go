package alert

import (
	"context"
	"fmt"
	"math"

	"github.com/flowenginer/meta-hub/event"
	"github.com/flowenginer/meta-hub/route"
)

// allTimeWindowHours stands in for "no time bound" on conditions whose
// config carries no window field (dlq_threshold is an all-time count).
const allTimeWindowHours = 24 * 365 * 10

// evaluation is one condition check's outcome, carrying the numbers that
// produced it so History.ConditionSnapshot can record exactly what tripped
// the rule.
type evaluation struct {
	Fired    bool
	Snapshot map[string]any
}

func evaluateCondition(ctx context.Context, r Rule, events event.Repository, routes route.Repository) (evaluation, error) {
	switch r.ConditionType {
	case ConditionErrorRate:
		return evalErrorRate(ctx, r, events)
	case ConditionDLQThreshold:
		return evalDLQThreshold(ctx, r, events)
	case ConditionLatencyThreshold:
		return evalLatencyThreshold(ctx, r, events)
	case ConditionNoEvents:
		return evalNoEvents(ctx, r, events)
	case ConditionConsecutiveFails:
		return evalConsecutiveFails(ctx, r, events, routes)
	case ConditionCustom:
		// Custom conditions have no built-in predicate; they only ever fire
		// through an external caller invoking fire() directly, never here.
		return evaluation{}, nil
	default:
		return evaluation{}, fmt.Errorf("alert: unrecognized condition_type %q", r.ConditionType)
	}
}

func configNumber(cfg map[string]any, key string, def float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return def
	}
}

// hoursFromMinutes converts a condition_config window expressed in minutes
// into the whole-hour granularity StatsByWindow accepts, rounding up so a
// 90-minute window is never under-counted to one hour.
func hoursFromMinutes(minutes float64) int {
	h := int(math.Ceil(minutes / 60))
	if h < 1 {
		return 1
	}
	return h
}

func evalErrorRate(ctx context.Context, r Rule, events event.Repository) (evaluation, error) {
	thresholdPct := configNumber(r.ConditionConfig, "threshold_pct", 0)
	windowMinutes := configNumber(r.ConditionConfig, "window_minutes", 60)

	stats, err := events.StatsByWindow(ctx, r.TenantID, hoursFromMinutes(windowMinutes))
	if err != nil {
		return evaluation{}, fmt.Errorf("computing error rate: %w", err)
	}
	if stats.TotalEvents == 0 {
		return evaluation{Snapshot: map[string]any{"total_events": 0}}, nil
	}

	ratePct := stats.ErrorRate() * 100
	return evaluation{
		Fired: ratePct >= thresholdPct,
		Snapshot: map[string]any{
			"error_rate_pct": ratePct,
			"threshold_pct":  thresholdPct,
			"total_events":   stats.TotalEvents,
		},
	}, nil
}

func evalDLQThreshold(ctx context.Context, r Rule, events event.Repository) (evaluation, error) {
	threshold := configNumber(r.ConditionConfig, "threshold", 0)

	stats, err := events.StatsByWindow(ctx, r.TenantID, allTimeWindowHours)
	if err != nil {
		return evaluation{}, fmt.Errorf("computing dlq count: %w", err)
	}
	return evaluation{
		Fired:    float64(stats.DLQ) >= threshold,
		Snapshot: map[string]any{"dlq_count": stats.DLQ, "threshold": threshold},
	}, nil
}

func evalLatencyThreshold(ctx context.Context, r Rule, events event.Repository) (evaluation, error) {
	thresholdMs := configNumber(r.ConditionConfig, "threshold_ms", 0)
	windowMinutes := configNumber(r.ConditionConfig, "window_minutes", 60)

	stats, err := events.StatsByWindow(ctx, r.TenantID, hoursFromMinutes(windowMinutes))
	if err != nil {
		return evaluation{}, fmt.Errorf("computing average latency: %w", err)
	}
	return evaluation{
		Fired: stats.Delivered > 0 && stats.AvgLatencyMs >= thresholdMs,
		Snapshot: map[string]any{
			"avg_latency_ms": stats.AvgLatencyMs,
			"threshold_ms":   thresholdMs,
			"delivered":      stats.Delivered,
		},
	}, nil
}

func evalNoEvents(ctx context.Context, r Rule, events event.Repository) (evaluation, error) {
	minutes := configNumber(r.ConditionConfig, "minutes", 60)

	stats, err := events.StatsByWindow(ctx, r.TenantID, hoursFromMinutes(minutes))
	if err != nil {
		return evaluation{}, fmt.Errorf("computing event count: %w", err)
	}
	return evaluation{
		Fired:    stats.TotalEvents == 0,
		Snapshot: map[string]any{"total_events": stats.TotalEvents, "window_minutes": minutes},
	}, nil
}

// evalConsecutiveFails treats "any destination" as "any of the tenant's
// routes" — the Event Store only tracks a consecutive-failure streak keyed
// by route, and a route maps 1:1 onto the destination it targets, so the
// worst streak across a tenant's routes is the signal the condition table
// describes.
func evalConsecutiveFails(ctx context.Context, r Rule, events event.Repository, routes route.Repository) (evaluation, error) {
	threshold := int(configNumber(r.ConditionConfig, "threshold", 0))

	all, err := routes.List(ctx, r.TenantID)
	if err != nil {
		return evaluation{}, fmt.Errorf("listing routes: %w", err)
	}

	maxStreak := 0
	var worstRoute string
	for _, rt := range all {
		streak, err := events.ConsecutiveFailures(ctx, r.TenantID, rt.ID)
		if err != nil {
			return evaluation{}, fmt.Errorf("computing consecutive failures for route %s: %w", rt.ID, err)
		}
		if streak > maxStreak {
			maxStreak = streak
			worstRoute = rt.ID
		}
	}

	return evaluation{
		Fired: threshold > 0 && maxStreak >= threshold,
		Snapshot: map[string]any{
			"consecutive_fails": maxStreak,
			"threshold":         threshold,
			"route_id":          worstRoute,
		},
	}, nil
}
