package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultEvalInterval is how often Worker drives an Evaluate pass when the
// caller doesn't override it.
const DefaultEvalInterval = 60 * time.Second

// Worker runs Evaluate on a fixed tick, in the same ticker-driven
// background-loop shape as the Delivery Worker (itself grounded on
// overtonx-outbox's BaseWorker): configurable interval, graceful Stop()
// that drains any in-flight tick, context.Context cancellation.
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

// NewWorker builds a Worker that drives service.Evaluate every interval.
// A zero interval defaults to DefaultEvalInterval.
func NewWorker(service *Service, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultEvalInterval
	}
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
		w.logger.Warn("alert worker already started")
		return
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("alert worker starting", zap.Duration("interval", w.interval))
	defer w.logger.Info("alert worker stopped")

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

	if err := w.service.Evaluate(ctx); err != nil {
		w.logger.Error("alert evaluation cycle failed", zap.Error(err))
	}
}

// Stop signals the tick loop to exit and waits for any in-flight tick to
// finish. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if !w.started {
			return
		}
		close(w.stopChan)
		w.wg.Wait()
	})
}
