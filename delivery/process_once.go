package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowenginer/meta-hub/event"
)

// ProcessResult summarizes one synchronous /delivery/process call.
type ProcessResult struct {
	Processed int `json:"processed"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// ProcessOnce claims the same ready batch the scheduled Process cycle
// would, but waits for every dispatched attempt to finish before
// returning. The ticker-driven Process is deliberately fire-and-forget;
// the manual /delivery/process endpoint needs real counts in its response,
// so it goes through this synchronous sibling instead.
func (s *Service) ProcessOnce(ctx context.Context) (ProcessResult, error) {
	pending, err := s.events.QueryByStatus(ctx, event.StatusPending, time.Now(), maxClaimBatch)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("querying pending events: %w", err)
	}
	failed, err := s.events.QueryByStatus(ctx, event.StatusFailed, time.Now(), maxClaimBatch)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("querying failed events: %w", err)
	}

	candidates := append(pending, failed...)
	if len(candidates) > maxClaimBatch {
		candidates = candidates[:maxClaimBatch]
	}

	var (
		mu     sync.Mutex
		result ProcessResult
		wg     sync.WaitGroup
	)

	for _, e := range candidates {
		ev := e
		wg.Add(1)
		submitted := s.pool.TrySubmit(ev.TenantID, func() {
			defer wg.Done()
			outcome := s.claimAndDeliver(ctx, ev)
			if outcome == outcomeSkipped {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if outcome == outcomeDelivered {
				result.Delivered++
			} else {
				result.Failed++
			}
		})
		if !submitted {
			wg.Done()
		}
	}
	wg.Wait()
	return result, nil
}
