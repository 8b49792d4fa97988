// internal/app/store/assignments/assignmentstore.go
package assignmentstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"github.com/dalemusser/assignhub/internal/app/system/metrics"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheKeyPrefix prefixes every persisted snapshot key.
const CacheKeyPrefix = "assigned_customers_"

// CacheKey returns the persisted-cache key for a product's snapshot.
func CacheKey(productID string) string { return CacheKeyPrefix + productID }

var (
	ErrEmptyCustomerID = errors.New("assignment record has no customer id")
	ErrNotLoaded       = errors.New("assignment store has no product loaded")
	ErrProductMismatch = errors.New("assignment record belongs to a different product")
)

// PersistenceError describes a persisted-cache read or write failure.
// These are logged and counted; they never reach callers of the Store.
type PersistenceError struct {
	Op  string // "read", "decode", "encode" or "write"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("assignment cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RemoteLookup returns the customers the backend reports as assigned to a product.
type RemoteLookup interface {
	AssignedCustomers(ctx context.Context, productID string) ([]models.Customer, error)
}

// Options selects where a Store loads from and whether it persists.
//
// With Remote set, Load queries the backend. Without it, Load restores the
// snapshot from Cache. With Cache set, every mutation writes the snapshot back.
//
// Stores that share Loads share in-flight fetches: concurrent Load calls for
// the same product across those Stores issue one lookup. A nil Loads gives
// the Store a group of its own.
type Options struct {
	Remote RemoteLookup
	Cache  kvcache.Cache
	Loads  *singleflight.Group
	Logger *zap.Logger
}

// Store holds the ordered, deduplicated assignment records for one product.
//
// Records keep append order; replacing a record keeps its position. At most
// one record exists per customer ID.
type Store struct {
	remote RemoteLookup
	cache  kvcache.Cache
	log    *zap.Logger
	loads  *singleflight.Group
	w      *writer

	mu        sync.RWMutex
	productID string
	records   []models.AssignmentRecord
	index     map[string]int
	clock     uint64
}

// New creates an empty Store. Call Load before mutating it.
func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loads := opts.Loads
	if loads == nil {
		loads = new(singleflight.Group)
	}
	s := &Store{
		remote: opts.Remote,
		cache:  opts.Cache,
		log:    log,
		loads:  loads,
		index:  make(map[string]int),
	}
	if opts.Cache != nil {
		s.w = newWriter(opts.Cache, log)
	}
	return s
}

// Load replaces the Store's contents with productID's assignments and returns
// a snapshot. It never fails: read errors and malformed cache data leave the
// Store empty and are logged.
func (s *Store) Load(ctx context.Context, productID string) []models.AssignmentRecord {
	v, _, _ := s.loads.Do(productID, func() (any, error) {
		return s.fetch(ctx, productID), nil
	})
	recs, _ := v.([]models.AssignmentRecord)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(productID, recs)
	return s.snapshotLocked()
}

func (s *Store) fetch(ctx context.Context, productID string) []models.AssignmentRecord {
	if productID == "" {
		return nil
	}

	if s.remote != nil {
		customers, err := s.remote.AssignedCustomers(ctx, productID)
		if err != nil {
			s.log.Warn("assigned customers lookup failed; starting empty",
				zap.String("product_id", productID), zap.Error(err))
			metrics.StoreLoadsTotal.WithLabelValues("remote", "error").Inc()
			return nil
		}
		out := make([]models.AssignmentRecord, 0, len(customers))
		for _, c := range customers {
			out = append(out, models.NewAssignmentRecord(productID, c, models.AssignmentConfirmed))
		}
		metrics.StoreLoadsTotal.WithLabelValues("remote", "ok").Inc()
		return out
	}

	if s.cache != nil {
		recs, err := restore(ctx, s.cache, productID)
		if err != nil {
			s.log.Warn("persisted assignments unreadable; starting empty",
				zap.String("product_id", productID), zap.Error(err))
			metrics.StoreLoadsTotal.WithLabelValues("cache", "error").Inc()
			return nil
		}
		metrics.StoreLoadsTotal.WithLabelValues("cache", "ok").Inc()
		return recs
	}

	metrics.StoreLoadsTotal.WithLabelValues("none", "ok").Inc()
	return nil
}

// reset installs recs as the contents for productID, dropping records that
// would break the one-record-per-customer rule.
func (s *Store) reset(productID string, recs []models.AssignmentRecord) {
	s.productID = productID
	s.records = make([]models.AssignmentRecord, 0, len(recs))
	s.index = make(map[string]int, len(recs))
	s.clock = 0

	for _, r := range recs {
		if r.AssignedAt > s.clock {
			s.clock = r.AssignedAt
		}
	}
	for _, r := range recs {
		if r.CustomerID == "" {
			continue
		}
		if _, dup := s.index[r.CustomerID]; dup {
			s.log.Debug("dropping duplicate assignment on load",
				zap.String("product_id", productID), zap.String("customer_id", r.CustomerID))
			continue
		}
		r.ProductID = productID
		if r.AssignedAt == 0 {
			r.AssignedAt = s.tick()
		}
		s.index[r.CustomerID] = len(s.records)
		s.records = append(s.records, r)
	}
}

// Upsert inserts rec, or replaces the existing record for the same customer
// in place. A replaced record keeps its original AssignedAt.
func (s *Store) Upsert(rec models.AssignmentRecord) error {
	if rec.CustomerID == "" {
		return ErrEmptyCustomerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.productID == "" {
		return ErrNotLoaded
	}
	if rec.ProductID != s.productID {
		return ErrProductMismatch
	}

	if i, ok := s.index[rec.CustomerID]; ok {
		rec.AssignedAt = s.records[i].AssignedAt
		s.records[i] = rec
	} else {
		rec.AssignedAt = s.tick()
		s.index[rec.CustomerID] = len(s.records)
		s.records = append(s.records, rec)
	}

	s.persistLocked()
	return nil
}

// Remove deletes the record for customerID. It is a no-op when absent.
func (s *Store) Remove(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[customerID]
	if !ok {
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, customerID)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].CustomerID] = j
	}

	s.persistLocked()
}

// Get returns the record for customerID.
func (s *Store) Get(customerID string) (models.AssignmentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[customerID]
	if !ok {
		return models.AssignmentRecord{}, false
	}
	return s.records[i], true
}

// Snapshot returns a copy of the records in assignment order.
func (s *Store) Snapshot() []models.AssignmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ProductID returns the product this Store was loaded for.
func (s *Store) ProductID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productID
}

// Flush waits until every scheduled snapshot write has finished.
func (s *Store) Flush(ctx context.Context) error {
	if s.w == nil {
		return nil
	}
	return s.w.flush(ctx)
}

func (s *Store) snapshotLocked() []models.AssignmentRecord {
	out := make([]models.AssignmentRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}

// persistLocked schedules a snapshot write. An empty snapshot is never
// written so a mutation racing the first load cannot wipe a stored snapshot.
func (s *Store) persistLocked() {
	if s.w == nil {
		return
	}
	if len(s.records) == 0 {
		metrics.CacheWritesTotal.WithLabelValues("skipped_empty").Inc()
		return
	}
	s.w.schedule(CacheKey(s.productID), s.snapshotLocked())
}
