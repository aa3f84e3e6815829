package delivery

import (
	"sync"

	"go.uber.org/zap"
)

const defaultPerTenantConcurrency = 32

// tenantPool dispatches tasks with a concurrency cap applied per tenant, so
// one noisy tenant's slow destinations cannot starve another tenant's
// queue (spec.md §9's "32 concurrent outbound calls per tenant" note). It
// is a small semaphore-backed dispatcher rather than a general-purpose
// worker-pool dependency: the per-tenant keying and graceful-drain shape
// are specific enough that a generic pool would need its own adapter on
// top of this anyway.
type tenantPool struct {
	limit  int
	logger *zap.Logger

	mu   sync.Mutex
	sems map[string]chan struct{}
	wg   sync.WaitGroup
}

func newTenantPool(limit int, logger *zap.Logger) *tenantPool {
	if limit <= 0 {
		limit = defaultPerTenantConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tenantPool{limit: limit, logger: logger, sems: make(map[string]chan struct{})}
}

func (p *tenantPool) semFor(tenantID string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.sems[tenantID]
	if !ok {
		sem = make(chan struct{}, p.limit)
		p.sems[tenantID] = sem
	}
	return sem
}

// TrySubmit attempts a non-blocking claim on tenantID's slot and runs fn in
// a new goroutine if acquired. It reports whether the task was accepted;
// the caller is responsible for treating rejection as an ordinary "try
// again next tick" outcome, not a failure.
func (p *tenantPool) TrySubmit(tenantID string, fn func()) bool {
	sem := p.semFor(tenantID)
	select {
	case sem <- struct{}{}:
	default:
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-sem }()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("recovered panic in delivery task", zap.String("tenant_id", tenantID), zap.Any("panic", r))
			}
		}()
		fn()
	}()
	return true
}

// Wait blocks until every submitted task has returned. Used by Stop() to
// drain in-flight work before a worker shuts down.
func (p *tenantPool) Wait() {
	p.wg.Wait()
}
