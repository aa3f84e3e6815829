package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownCache fast-checks whether a rule fired recently enough to still
// be within its cooldown window, mirroring the teacher's worker-heartbeat
// pattern (webhook/redis/heartbeat.go's key-plus-TTL Set) adapted from
// liveness to cooldown. Rule.LastTriggeredAt loaded from Postgres stays
// the source of truth; this cache only saves a second evaluation pass from
// re-deriving what the freshly-loaded rule already tells it, and keeps
// working (conservatively, by reporting no cooldown) if Redis is slow or
// down.
type CooldownCache struct {
	client *redis.Client
}

// NewCooldownCache wraps client. A nil client is valid: every method then
// degrades to "not in cooldown", leaving Postgres's last_triggered_at as
// the only check.
func NewCooldownCache(client *redis.Client) *CooldownCache {
	return &CooldownCache{client: client}
}

func cooldownKey(ruleID string) string {
	return fmt.Sprintf("alert:cooldown:%s", ruleID)
}

// InCooldown reports whether ruleID has a live cooldown marker. A Redis
// error is treated the same as a cache miss: the caller falls back to the
// Postgres-derived check, so this never blocks evaluation.
func (c *CooldownCache) InCooldown(ctx context.Context, ruleID string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, cooldownKey(ruleID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkTriggered records ruleID's firing with a TTL equal to cooldownMinutes
// so the next Evaluate tick's fast check sees it without touching Postgres.
func (c *CooldownCache) MarkTriggered(ctx context.Context, ruleID string, cooldownMinutes int) {
	if c == nil || c.client == nil || cooldownMinutes <= 0 {
		return
	}
	ttl := time.Duration(cooldownMinutes) * time.Minute
	_ = c.client.Set(ctx, cooldownKey(ruleID), time.Now().Format(time.RFC3339), ttl).Err()
}
