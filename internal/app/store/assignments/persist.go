package assignmentstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"github.com/dalemusser/assignhub/internal/app/system/metrics"
	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"go.uber.org/zap"
)

// restore reads and decodes productID's persisted snapshot. A missing key is
// an empty result, not an error.
//
// Records still marked pending or rejected are dropped: the attempt that
// created them cannot resolve after a reload.
func restore(ctx context.Context, cache kvcache.Cache, productID string) ([]models.AssignmentRecord, error) {
	key := CacheKey(productID)

	raw, found, err := cache.Get(ctx, key)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Key: key, Err: err}
	}
	if !found || raw == "" {
		return nil, nil
	}

	var recs []models.AssignmentRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, &PersistenceError{Op: "decode", Key: key, Err: err}
	}

	out := recs[:0]
	for _, r := range recs {
		if r.Status != models.AssignmentConfirmed {
			continue
		}
		if r.ProductID != "" && r.ProductID != productID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// writer persists snapshots off the caller's goroutine. Per key only the
// latest snapshot is kept, and writes for a key never run out of order.
type writer struct {
	cache kvcache.Cache
	log   *zap.Logger

	mu      sync.Mutex
	pending map[string][]models.AssignmentRecord
	running bool
	done    chan struct{}
}

func newWriter(cache kvcache.Cache, log *zap.Logger) *writer {
	return &writer{
		cache:   cache,
		log:     log,
		pending: make(map[string][]models.AssignmentRecord),
	}
}

func (w *writer) schedule(key string, snap []models.AssignmentRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[key] = snap
	if !w.running {
		w.running = true
		w.done = make(chan struct{})
		go w.run(w.done)
	}
}

func (w *writer) run(done chan struct{}) {
	defer close(done)
	for {
		w.mu.Lock()
		var (
			key  string
			snap []models.AssignmentRecord
			ok   bool
		)
		for k, v := range w.pending {
			key, snap, ok = k, v, true
			break
		}
		if !ok {
			w.running = false
			w.mu.Unlock()
			return
		}
		delete(w.pending, key)
		w.mu.Unlock()

		w.write(key, snap)
	}
}

func (w *writer) write(key string, snap []models.AssignmentRecord) {
	data, err := json.Marshal(snap)
	if err != nil {
		w.log.Error("assignment snapshot encode failed",
			zap.Error(&PersistenceError{Op: "encode", Key: key, Err: err}))
		metrics.CacheWritesTotal.WithLabelValues("error").Inc()
		return
	}

	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Short(), w.log, "assignment snapshot write")
	defer cancel()

	if err := w.cache.Set(ctx, key, string(data)); err != nil {
		w.log.Warn("assignment snapshot write failed; in-memory state remains authoritative",
			zap.Error(&PersistenceError{Op: "write", Key: key, Err: err}))
		metrics.CacheWritesTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CacheWritesTotal.WithLabelValues("ok").Inc()
}

// flush blocks until no write is running or scheduled.
func (w *writer) flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		running, done := w.running, w.done
		w.mu.Unlock()
		if !running {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
