package route

import (
	"context"
	"fmt"
	"sort"
)

// Resolver resolves the ordered set of matching active routes for an
// inbound source.
type Resolver struct {
	repo Repository
}

// NewResolver builds a Resolver over repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns every Route matching (tenantID, sourceType, sourceID)
// whose filter_rules accept eventType, sorted by priority descending then
// creation time ascending. sourceID and eventType may be empty when the
// inbound source carries neither (e.g. Lead Gen webhooks have no
// per-message event type to filter on).
func (r *Resolver) Resolve(ctx context.Context, tenantID, sourceType, sourceID, eventType string) ([]Route, error) {
	candidates, err := r.repo.FindCandidates(ctx, tenantID, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("finding route candidates: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if eventType == "" {
		return candidates, nil
	}

	matched := make([]Route, 0, len(candidates))
	for _, c := range candidates {
		filter := NormalizeFilterRules(c.FilterRules)
		if filter.Matches(eventType) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}
