package assign

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/assignboard"
	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// BoardFactory builds a fresh board whose backend calls are authorised by ts.
type BoardFactory func(ts oauth2.TokenSource) (*assignboard.Board, error)

type entry struct {
	board    *assignboard.Board
	tokens   *auth.TokenHolder
	lastSeen time.Time
}

// Registry keeps one board per operator session.
type Registry struct {
	newBoard BoardFactory
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(factory BoardFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		newBoard: factory,
		log:      logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Board returns the board for c's session, creating it on first use. The
// session's token source is refreshed from c on every call.
func (r *Registry) Board(c auth.Credential) (*assignboard.Board, error) {
	if c.SessionID == "" {
		return nil, auth.ErrNoCredential
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[c.SessionID]
	if !ok {
		holder := &auth.TokenHolder{}
		b, err := r.newBoard(holder)
		if err != nil {
			return nil, err
		}
		e = &entry{board: b, tokens: holder}
		r.entries[c.SessionID] = e
		r.log.Debug("operator board created", zap.String("session_id", c.SessionID))
	}
	e.tokens.Set(c)
	e.lastSeen = r.now()
	return e.board, nil
}

// Drop removes sessionID's board after flushing its pending writes.
func (r *Registry) Drop(ctx context.Context, sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if ok {
		r.flush(ctx, sessionID, e.board)
	}
}

// EvictIdle drops boards not used for longer than threshold.
func (r *Registry) EvictIdle(ctx context.Context, threshold time.Duration) int {
	cutoff := r.now().Add(-threshold)

	r.mu.Lock()
	evicted := make(map[string]*assignboard.Board)
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted[id] = e.board
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for id, b := range evicted {
		r.flush(ctx, id, b)
	}
	return len(evicted)
}

// FlushAll waits for every board's pending snapshot writes.
func (r *Registry) FlushAll(ctx context.Context) error {
	r.mu.Lock()
	boards := make([]*assignboard.Board, 0, len(r.entries))
	for _, e := range r.entries {
		boards = append(boards, e.board)
	}
	r.mu.Unlock()

	var errs []error
	for _, b := range boards {
		if err := b.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live boards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) flush(ctx context.Context, sessionID string, b *assignboard.Board) {
	if err := b.Flush(ctx); err != nil {
		r.log.Warn("board flush on eviction failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
