package route_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowenginer/meta-hub/route"
)

// fakeRepository is a hand-written test double — the engine's resolver
// logic is pure given a candidate list, so a mock framework buys nothing
// here.
type fakeRepository struct {
	route.Repository
	candidates []route.Route
}

func (f *fakeRepository) FindCandidates(ctx context.Context, tenantID, sourceType, sourceID string) ([]route.Route, error) {
	return f.candidates, nil
}

func TestResolver_Resolve(t *testing.T) {
	now := time.Now()

	t.Run("sorts by priority descending then created_at ascending", func(t *testing.T) {
		repo := &fakeRepository{candidates: []route.Route{
			{ID: "low-early", Priority: 10, CreatedAt: now},
			{ID: "high", Priority: 90, CreatedAt: now.Add(time.Hour)},
			{ID: "low-late", Priority: 10, CreatedAt: now.Add(time.Minute)},
		}}
		resolver := route.NewResolver(repo)

		got, err := resolver.Resolve(t.Context(), "tenant-1", "whatsapp", "", "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "high", got[0].ID)
		assert.Equal(t, "low-early", got[1].ID)
		assert.Equal(t, "low-late", got[2].ID)
	})

	t.Run("filters by event_types when an event type is given", func(t *testing.T) {
		repo := &fakeRepository{candidates: []route.Route{
			{
				ID:          "messages-only",
				Priority:    0,
				CreatedAt:   now,
				FilterRules: &route.FilterRules{EventTypes: []route.WhatsAppEventType{route.EventMessages}},
			},
			{ID: "catch-all-filter", Priority: 0, CreatedAt: now},
		}}
		resolver := route.NewResolver(repo)

		got, err := resolver.Resolve(context.Background(), "tenant-1", "whatsapp", "", "status_sent")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "catch-all-filter", got[0].ID)
	})

	t.Run("empty filter_rules behaves like nil", func(t *testing.T) {
		repo := &fakeRepository{candidates: []route.Route{
			{ID: "empty-filter", FilterRules: &route.FilterRules{}, CreatedAt: now},
		}}
		resolver := route.NewResolver(repo)

		got, err := resolver.Resolve(context.Background(), "tenant-1", "whatsapp", "", "status_failed")
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("no event type skips filtering entirely", func(t *testing.T) {
		repo := &fakeRepository{candidates: []route.Route{
			{
				ID:          "restricted",
				FilterRules: &route.FilterRules{EventTypes: []route.WhatsAppEventType{route.EventMessages}},
				CreatedAt:   now,
			},
		}}
		resolver := route.NewResolver(repo)

		got, err := resolver.Resolve(context.Background(), "tenant-1", "forms", "", "")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
