// Package reconcile merges the outcome of remote assign attempts into the
// local assignment store.
//
// Each product context has at most one pending attempt. An attempt inserts a
// pending record optimistically, then:
//
//	success            → record confirmed
//	duplicate          → record confirmed (idempotent; "already assigned")
//	any other failure  → record removed, error surfaced
//	context switched   → outcome discarded, new store untouched
//
// Attempts are never retried. Unassign is local only.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"

	assignmentstore "github.com/dalemusser/assignhub/internal/app/store/assignments"
	"github.com/dalemusser/assignhub/internal/app/system/metrics"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Assigner issues assign requests to the authoritative backend. It returns
// ErrDuplicateAssignment (possibly wrapped) when the assignment already exists.
type Assigner interface {
	Assign(ctx context.Context, productID, customerID string) error
}

// StoreFactory builds the Store for a newly opened product context.
type StoreFactory func() *assignmentstore.Store

// AttemptState is the state of an assign attempt.
type AttemptState int

const (
	Idle AttemptState = iota
	Pending
	Confirmed
	Rejected // duplicate on the backend, coerced to success
	Failed
)

func (s AttemptState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is what an attempt did to the Store.
type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeAlreadyAssigned Outcome = "already_assigned"
	OutcomeFailed          Outcome = "failed"
	OutcomeDiscarded       Outcome = "discarded"
)

// AlreadyAssignedNotice is the softer message surfaced for a duplicate.
const AlreadyAssignedNotice = "This customer is already assigned to this product"

// Result describes a resolved attempt.
type Result struct {
	AttemptID  string
	ProductID  string
	CustomerID string
	State      AttemptState
	Outcome    Outcome
	Record     models.AssignmentRecord
	Notice     string
}

type attempt struct {
	id         string
	productID  string
	customerID string
	generation uint64
	inserted   bool
}

// Reconciler owns the Store for the active product context and applies
// assign attempt outcomes to it.
type Reconciler struct {
	remote   Assigner
	newStore StoreFactory
	log      *zap.Logger

	mu         sync.Mutex
	store      *assignmentstore.Store
	productID  string
	generation uint64
	inflight   *attempt
}

// New creates a Reconciler with no product context open.
func New(remote Assigner, newStore StoreFactory, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{remote: remote, newStore: newStore, log: logger}
}

// Open switches the active context to productID. The previous Store is
// discarded and any attempt still pending against it will be ignored when it
// resolves. If another Open starts before this one has loaded, this one
// returns ErrSuperseded and no records.
func (r *Reconciler) Open(ctx context.Context, productID string) ([]models.AssignmentRecord, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, &ValidationError{Field: "productId"}
	}

	st := r.newStore()

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.productID = productID
	r.store = nil
	r.inflight = nil
	r.mu.Unlock()

	recs := st.Load(ctx, productID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return nil, ErrSuperseded
	}
	r.store = st
	r.log.Debug("product context opened",
		zap.String("product_id", productID),
		zap.Uint64("generation", gen),
		zap.Int("records", len(recs)))
	return recs, nil
}

// ProductID returns the active product context, or "" when none is open.
func (r *Reconciler) ProductID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.productID
}

// State reports Pending while an attempt for the active context is
// outstanding and Idle otherwise.
func (r *Reconciler) State() AttemptState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight != nil {
		return Pending
	}
	return Idle
}

// Snapshot returns the active Store's records in assignment order.
func (r *Reconciler) Snapshot() []models.AssignmentRecord {
	r.mu.Lock()
	st := r.store
	r.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Snapshot()
}

// Assign runs one assign attempt for customer against the active context.
//
// It returns a *ValidationError for a missing customer or product,
// ErrAttemptInFlight when another attempt is pending, and a *RemoteFailure
// when the backend rejects the attempt for any reason other than a duplicate.
func (r *Reconciler) Assign(ctx context.Context, customer models.Customer) (Result, error) {
	customer.ID = strings.TrimSpace(customer.ID)
	if customer.ID == "" {
		metrics.AssignAttemptsTotal.WithLabelValues("invalid").Inc()
		return Result{}, &ValidationError{Field: "customerId"}
	}

	a, st, err := r.begin(customer)
	if err != nil {
		return Result{}, err
	}

	log := r.log.With(
		zap.String("attempt_id", a.id),
		zap.String("product_id", a.productID),
		zap.String("customer_id", a.customerID))
	log.Debug("assign attempt pending", zap.Bool("optimistic_insert", a.inserted))

	remoteErr := r.remote.Assign(ctx, a.productID, a.customerID)

	return r.resolve(a, st, customer, remoteErr, log)
}

// begin validates the context, enforces single-flight and inserts the
// optimistic pending record.
func (r *Reconciler) begin(customer models.Customer) (*attempt, *assignmentstore.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil || r.productID == "" {
		metrics.AssignAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, &ValidationError{Field: "productId"}
	}
	if r.inflight != nil {
		metrics.AssignAttemptsTotal.WithLabelValues("rejected_in_flight").Inc()
		return nil, nil, ErrAttemptInFlight
	}

	a := &attempt{
		id:         uuid.NewString(),
		productID:  r.productID,
		customerID: customer.ID,
		generation: r.generation,
	}

	if _, exists := r.store.Get(customer.ID); !exists {
		pending := models.NewAssignmentRecord(a.productID, customer, models.AssignmentPending)
		if err := r.store.Upsert(pending); err != nil {
			return nil, nil, err
		}
		a.inserted = true
	}

	r.inflight = a
	return a, r.store, nil
}

func (r *Reconciler) resolve(a *attempt, st *assignmentstore.Store, customer models.Customer, remoteErr error, log *zap.Logger) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight == a {
		r.inflight = nil
	}

	res := Result{AttemptID: a.id, ProductID: a.productID, CustomerID: a.customerID}

	if a.generation != r.generation {
		log.Info("assign outcome discarded; product context changed", zap.NamedError("remote_error", remoteErr))
		metrics.AssignAttemptsTotal.WithLabelValues(string(OutcomeDiscarded)).Inc()
		res.State = stateFor(remoteErr)
		res.Outcome = OutcomeDiscarded
		return res, nil
	}

	switch {
	case remoteErr == nil:
		res.State = Confirmed
		res.Outcome = OutcomeConfirmed

	case errors.Is(remoteErr, ErrDuplicateAssignment):
		log.Info("backend reports assignment already exists; treating as confirmed")
		res.State = Rejected
		res.Outcome = OutcomeAlreadyAssigned
		res.Notice = AlreadyAssignedNotice

	default:
		if a.inserted {
			if cur, ok := st.Get(a.customerID); ok && cur.Status == models.AssignmentPending {
				st.Remove(a.customerID)
			}
		}
		log.Warn("assign attempt failed; optimistic record rolled back", zap.Error(remoteErr))
		metrics.AssignAttemptsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		res.State = Failed
		res.Outcome = OutcomeFailed
		return res, &RemoteFailure{ProductID: a.productID, CustomerID: a.customerID, Err: remoteErr}
	}

	rec, ok := st.Get(a.customerID)
	if !ok {
		rec = models.NewAssignmentRecord(a.productID, customer, models.AssignmentConfirmed)
	}
	rec.Status = models.AssignmentConfirmed
	if err := st.Upsert(rec); err != nil {
		return res, err
	}
	res.Record, _ = st.Get(a.customerID)

	metrics.AssignAttemptsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func stateFor(err error) AttemptState {
	switch {
	case err == nil:
		return Confirmed
	case errors.Is(err, ErrDuplicateAssignment):
		return Rejected
	default:
		return Failed
	}
}

// Unassign removes customerID from the active Store. It is local only: no
// backend call is made and there is no rollback. A missing record is a no-op.
func (r *Reconciler) Unassign(customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return &ValidationError{Field: "customerId"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return &ValidationError{Field: "productId"}
	}
	return r.unassignLocked(customerID)
}

// UnassignMany removes each of ids and returns how many records were removed.
// Records with a pending attempt are skipped.
func (r *Reconciler) UnassignMany(ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return 0, &ValidationError{Field: "productId"}
	}

	n := 0
	for _, id := range ids {
		if _, ok := r.store.Get(id); !ok {
			continue
		}
		if err := r.unassignLocked(id); err != nil {
			continue
		}
		n++
	}
	return n, nil
}

func (r *Reconciler) unassignLocked(customerID string) error {
	cur, ok := r.store.Get(customerID)
	if !ok {
		return nil
	}
	if cur.Status == models.AssignmentPending {
		return ErrAttemptInFlight
	}
	r.store.Remove(customerID)
	metrics.UnassignsTotal.Inc()
	r.log.Debug("customer unassigned locally",
		zap.String("product_id", r.productID),
		zap.String("customer_id", customerID))
	return nil
}

// Flush waits for the active Store's pending snapshot writes.
func (r *Reconciler) Flush(ctx context.Context) error {
	r.mu.Lock()
	st := r.store
	r.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Flush(ctx)
}
