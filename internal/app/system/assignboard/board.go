// Package assignboard is the operator-facing facade over the assignment
// engine. It composes the reconciler, pagination and bulk selection into the
// state one product page needs.
package assignboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/assignhub/internal/app/system/paging"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/app/system/selection"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"go.uber.org/zap"
)

// ErrCandidatesClosed is returned by Candidates when the modal session it was
// loading for ended before the directory answered.
var ErrCandidatesClosed = errors.New("candidate list closed while loading")

// Directory lists candidate customers.
type Directory interface {
	ListUsers(ctx context.Context, page, limit int) ([]models.Customer, error)
}

// Options configures a Board. Zero values fall back to the paging defaults.
type Options struct {
	PageSize       int
	DirectoryLimit int
	Logger         *zap.Logger
}

// View is what the rendering layer draws for the open product.
type View struct {
	ProductID         string                    `json:"productId"`
	Records           []models.AssignmentRecord `json:"records"`
	ShortIDs          map[string]string         `json:"shortIds"` // customerId → display label
	Range             paging.Range              `json:"range"`
	PageSize          int                       `json:"pageSize"`
	Selected          []string                  `json:"selected"`
	AllSelected       bool                      `json:"allSelected"`
	PartiallySelected bool                      `json:"partiallySelected"`
	Attempt           string                    `json:"attempt"`
}

// Board holds one operator's page state for the open product.
type Board struct {
	rec   *reconcile.Reconciler
	dir   Directory
	log   *zap.Logger
	limit int

	mu         sync.Mutex
	page       int
	pageSize   int
	sel        selection.Tracker
	candidates map[string]models.Customer // nil when the assign modal is closed
	order      []models.Customer
	modal      uint64 // bumped whenever the modal session ends
}

// New creates a Board over rec. dir may be nil when no directory is wired;
// Candidates then returns an empty list.
func New(rec *reconcile.Reconciler, dir Directory, opts Options) *Board {
	if opts.PageSize < 1 {
		opts.PageSize = paging.PageSize
	}
	if opts.DirectoryLimit < 1 {
		opts.DirectoryLimit = paging.DirectoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Board{
		rec:      rec,
		dir:      dir,
		log:      opts.Logger,
		limit:    opts.DirectoryLimit,
		page:     1,
		pageSize: opts.PageSize,
	}
}

// Open switches the board to productID, resetting page, selection and the
// candidate list.
func (b *Board) Open(ctx context.Context, productID string) (View, error) {
	if _, err := b.rec.Open(ctx, productID); err != nil {
		return View{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = 1
	b.sel.Clear()
	b.closeCandidatesLocked()
	return b.viewLocked(), nil
}

// View returns the current page.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

// SetPage moves to page, clamped to the available pages, and clears the
// selection.
func (b *Board) SetPage(page int) View {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = page
	b.sel.Clear()
	return b.viewLocked()
}

// SetPageSize changes the rows per page and clears the selection.
func (b *Board) SetPageSize(size int) (View, error) {
	if size < 1 {
		return View{}, &reconcile.ValidationError{Field: "size", Reason: "must be at least 1"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pageSize = size
	b.sel.Clear()
	return b.viewLocked(), nil
}

// Candidates returns the directory users offered by the assign modal. The
// list is fetched once per modal session and reused until CloseCandidates,
// a successful Assign, or Open.
func (b *Board) Candidates(ctx context.Context) ([]models.Customer, error) {
	b.mu.Lock()
	if b.candidates != nil {
		out := append([]models.Customer(nil), b.order...)
		b.mu.Unlock()
		return out, nil
	}
	session := b.modal
	b.mu.Unlock()

	var list []models.Customer
	if b.dir != nil {
		var err error
		list, err = b.dir.ListUsers(ctx, 1, b.limit)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.modal != session {
		return nil, ErrCandidatesClosed
	}
	if b.candidates != nil {
		// A concurrent call filled this session first.
		return append([]models.Customer(nil), b.order...), nil
	}
	b.candidates = make(map[string]models.Customer, len(list))
	b.order = b.order[:0]
	for _, c := range list {
		if c.ID == "" {
			continue
		}
		if _, dup := b.candidates[c.ID]; dup {
			continue
		}
		b.candidates[c.ID] = c
		b.order = append(b.order, c)
	}
	return append([]models.Customer(nil), b.order...), nil
}

// CloseCandidates ends the modal session and drops the cached list.
func (b *Board) CloseCandidates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCandidatesLocked()
}

func (b *Board) closeCandidatesLocked() {
	b.candidates = nil
	b.order = nil
	b.modal++
}

// Assign assigns the candidate customerID to the open product. The customer
// must come from the current candidate list; its directory fields become the
// record's snapshot.
func (b *Board) Assign(ctx context.Context, customerID string) (reconcile.Result, View, error) {
	b.mu.Lock()
	c, ok := b.candidates[customerID]
	b.mu.Unlock()
	if !ok {
		return reconcile.Result{}, b.View(), &reconcile.ValidationError{Field: "customerId", Reason: "not in the candidate list"}
	}

	res, err := b.rec.Assign(ctx, c)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil && res.Outcome != reconcile.OutcomeDiscarded {
		b.closeCandidatesLocked()
	}
	return res, b.viewLocked(), err
}

// Unassign removes customerID from the open product.
func (b *Board) Unassign(customerID string) (View, error) {
	err := b.rec.Unassign(customerID)
	return b.View(), err
}

// UnassignSelected removes every selected customer on the current page and
// returns how many were removed.
func (b *Board) UnassignSelected() (int, View, error) {
	b.mu.Lock()
	ids := b.sel.Selected(b.pageIDsLocked())
	b.mu.Unlock()

	n, err := b.rec.UnassignMany(ids)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.Clear()
	b.log.Debug("bulk unassign",
		zap.String("product_id", b.rec.ProductID()),
		zap.Int("selected", len(ids)),
		zap.Int("removed", n))
	return n, b.viewLocked(), err
}

// SelectAll selects every customer on the current page.
func (b *Board) SelectAll() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.SelectAll(b.pageIDsLocked())
	return b.viewLocked()
}

// Toggle selects or deselects customerID. IDs not on the current page are
// ignored.
func (b *Board) Toggle(customerID string, included bool) View {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.Toggle(customerID, included)
	return b.viewLocked()
}

// ClearSelection deselects everything.
func (b *Board) ClearSelection() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel.Clear()
	return b.viewLocked()
}

// ProductID returns the open product, or "".
func (b *Board) ProductID() string { return b.rec.ProductID() }

// Flush waits for pending snapshot writes.
func (b *Board) Flush(ctx context.Context) error { return b.rec.Flush(ctx) }

// viewLocked clamps the page and drops selected IDs that are no longer on
// it before building the view.
func (b *Board) viewLocked() View {
	snap := b.rec.Snapshot()
	pages := paging.TotalPages(len(snap), b.pageSize)
	b.page = paging.Clamp(b.page, pages)

	rows := paging.Window(snap, b.pageSize, b.page)
	ids := recordIDs(rows)
	b.sel.Retain(ids)

	short := make(map[string]string, len(ids))
	for _, id := range ids {
		short[id] = models.ShortID(id)
	}

	return View{
		ProductID:         b.rec.ProductID(),
		Records:           rows,
		ShortIDs:          short,
		Range:             paging.Describe(len(snap), b.pageSize, b.page),
		PageSize:          b.pageSize,
		Selected:          b.sel.Selected(ids),
		AllSelected:       b.sel.IsAllSelected(ids),
		PartiallySelected: b.sel.IsPartiallySelected(ids),
		Attempt:           b.rec.State().String(),
	}
}

func (b *Board) pageIDsLocked() []string {
	snap := b.rec.Snapshot()
	page := paging.Clamp(b.page, paging.TotalPages(len(snap), b.pageSize))
	return recordIDs(paging.Window(snap, b.pageSize, page))
}

func recordIDs(rows []models.AssignmentRecord) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
	}
	return ids
}
