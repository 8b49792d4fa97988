// internal/app/system/workers/boardcleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleEvicter drops operator boards that have been idle longer than
// threshold and returns how many it dropped.
type IdleEvicter interface {
	EvictIdle(ctx context.Context, threshold time.Duration) int
}

// BoardCleanup is a background worker that evicts idle operator boards.
type BoardCleanup struct {
	boards            IdleEvicter
	log               *zap.Logger
	interval          time.Duration
	inactiveThreshold time.Duration
	stopCh            chan struct{}
	stopOnce          sync.Once
	wg                sync.WaitGroup
}

// NewBoardCleanup creates a new board cleanup worker.
//
// Parameters:
//   - boards: the board registry
//   - logger: zap logger for logging
//   - interval: how often to run cleanup (e.g., 1 minute)
//   - inactiveThreshold: how long a board must be idle before eviction (e.g., 30 minutes)
func NewBoardCleanup(boards IdleEvicter, logger *zap.Logger, interval, inactiveThreshold time.Duration) *BoardCleanup {
	return &BoardCleanup{
		boards:            boards,
		log:               logger,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		stopCh:            make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *BoardCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("board cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("inactive_threshold", w.inactiveThreshold))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once.
func (w *BoardCleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("board cleanup worker stopped")
}

func (w *BoardCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *BoardCleanup) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n := w.boards.EvictIdle(ctx, w.inactiveThreshold); n > 0 {
		w.log.Info("evicted idle boards", zap.Int("count", n))
	}
}
