package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker runs the process cycle on a fixed tick, in the teacher's
// ticker-driven background-loop shape (grounded on overtonx-outbox's
// BaseWorker): configurable interval, graceful Stop() that drains
// in-flight work, context.Context cancellation.
type Worker struct {
	interval time.Duration
	logger   *zap.Logger
	service  *Service

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
	stopChan chan struct{}
	started  bool
}

// NewWorker builds a Worker that drives service.Process every interval.
func NewWorker(service *Service, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		interval: interval,
		logger:   logger,
		service:  service,
		stopChan: make(chan struct{}),
	}
}

// Start begins the tick loop. It blocks until the worker is stopped via ctx
// cancellation or a call to Stop().
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		w.logger.Warn("delivery worker already started")
		return
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("delivery worker starting", zap.Duration("interval", w.interval))
	defer w.logger.Info("delivery worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			select {
			case <-w.stopChan:
				return
			default:
			}
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	select {
	case <-ctx.Done():
		return
	default:
	}

	if err := w.service.Process(ctx); err != nil {
		w.logger.Error("delivery process cycle failed", zap.Error(err))
	}
}

// Stop signals the tick loop to exit and waits for any in-flight tick (and
// the dispatched per-tenant tasks it started) to finish. Safe to call more
// than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if !w.started {
			return
		}
		close(w.stopChan)
		w.wg.Wait()
		w.service.pool.Wait()
	})
}
