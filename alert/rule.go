// Package alert evaluates tenant-configured rules against the Event Store
// and Log Sink on a fixed tick, and drives the triggered/acknowledged/
// resolved lifecycle of the alerts that fire.
package alert

import "time"

// ConditionType is the closed set of predicates a Rule may evaluate.
type ConditionType string

const (
	ConditionErrorRate        ConditionType = "error_rate"
	ConditionDLQThreshold     ConditionType = "dlq_threshold"
	ConditionLatencyThreshold ConditionType = "latency_threshold"
	ConditionNoEvents         ConditionType = "no_events"
	ConditionConsecutiveFails ConditionType = "consecutive_fails"
	ConditionCustom           ConditionType = "custom"
)

// NotifyChannel is the closed set of channels a Rule may notify through.
type NotifyChannel string

const (
	ChannelInApp   NotifyChannel = "in_app"
	ChannelEmail   NotifyChannel = "email"
	ChannelWebhook NotifyChannel = "webhook"
)

// Rule is a tenant-scoped alert definition: a condition to watch, the
// channels to notify when it fires, and the cooldown that keeps a
// misbehaving destination from paging someone every tick.
type Rule struct {
	ID              string
	TenantID        string
	Name            string
	Description     string
	ConditionType   ConditionType
	ConditionConfig map[string]any
	NotifyChannels  []NotifyChannel
	NotifyConfig    map[string]any
	CooldownMinutes int
	LastTriggeredAt *time.Time
	TriggerCount    int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
