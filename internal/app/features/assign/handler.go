// Package assign serves the operator's JSON surface over the assignment
// engine: one board per signed-in session.
package assign

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/assignboard"
	"github.com/dalemusser/assignhub/internal/app/system/assignclient"
	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"github.com/dalemusser/assignhub/internal/app/system/normalize"
	"github.com/dalemusser/assignhub/internal/app/system/paging"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

// Handler holds dependencies for the operator endpoints.
type Handler struct {
	Boards     *Registry
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler creates a new assign handler.
func NewHandler(boards *Registry, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Boards:     boards,
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

type sessionRequest struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type customerRequest struct {
	CustomerID string `json:"customerId"`
	Included   *bool  `json:"included,omitempty"`
}

// candidateJSON adds the display labels the assign modal draws.
type candidateJSON struct {
	models.Customer
	ShortID string `json:"shortId"`
	Initial string `json:"initial"`
}

type resultJSON struct {
	AttemptID  string                   `json:"attemptId"`
	ProductID  string                   `json:"productId"`
	CustomerID string                   `json:"customerId"`
	State      string                   `json:"state"`
	Outcome    reconcile.Outcome        `json:"outcome"`
	Notice     string                   `json:"notice,omitempty"`
	Record     *models.AssignmentRecord `json:"record,omitempty"`
}

func toResultJSON(res reconcile.Result) resultJSON {
	out := resultJSON{
		AttemptID:  res.AttemptID,
		ProductID:  res.ProductID,
		CustomerID: res.CustomerID,
		State:      res.State.String(),
		Outcome:    res.Outcome,
		Notice:     res.Notice,
	}
	if res.Record.CustomerID != "" {
		rec := res.Record
		out.Record = &rec
	}
	return out
}

// SignIn handles POST /assign/session. It stores the operator's backend
// bearer token in the session cookie.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	id, err := h.SessionMgr.SignIn(w, r, req.Token, req.ExpiresAt)
	if err != nil {
		h.Log.Error("session sign-in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

// SignOut handles DELETE /assign/session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if c, ok := auth.FromContext(r.Context()); ok {
		h.Boards.Drop(r.Context(), c.SessionID)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("session sign-out failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Candidates handles GET /assign/candidates.
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	list, err := b.Candidates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]candidateJSON, len(list))
	for i, c := range list {
		out[i] = candidateJSON{Customer: c, ShortID: models.ShortID(c.ID), Initial: c.Initial()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

// CloseCandidates handles DELETE /assign/candidates.
func (h *Handler) CloseCandidates(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r)
	if !ok {
		return
	}
	b.CloseCandidates()
	w.WriteHeader(http.StatusNoContent)
}

// Show handles GET /assign/{productID}. Optional page and size query
// parameters move the page; the product is opened if it is not already.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}

	if query.Get(r, "size") != "" {
		if _, err := b.SetPageSize(paging.ParseSize(r, paging.PageSize)); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	v := b.View()
	if query.Get(r, "page") != "" {
		v = b.SetPage(paging.ParsePage(r))
	}
	writeJSON(w, http.StatusOK, v)
}

// Assign handles POST /assign/{productID}/assign.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, v, err := b.Assign(r.Context(), normalize.ID(req.CustomerID))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == reconcile.OutcomeDiscarded {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"result": toResultJSON(res), "view": v})
}

// Unassign handles POST /assign/{productID}/unassign.
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := b.Unassign(normalize.ID(req.CustomerID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UnassignSelected handles POST /assign/{productID}/unassign-selected.
func (h *Handler) UnassignSelected(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	n, v, err := b.UnassignSelected()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n, "view": v})
}

// Select handles POST /assign/{productID}/select. "included" defaults to true.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := normalize.ID(req.CustomerID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "customerId is required")
		return
	}
	included := req.Included == nil || *req.Included
	writeJSON(w, http.StatusOK, b.Toggle(id, included))
}

// SelectAll handles POST /assign/{productID}/select-all.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.SelectAll())
}

// ClearSelection handles POST /assign/{productID}/select-clear.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	b, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.ClearSelection())
}

// board resolves the session's board from the request credential.
func (h *Handler) board(w http.ResponseWriter, r *http.Request) (*assignboard.Board, bool) {
	c, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrNoCredential.Error())
		return nil, false
	}
	b, err := h.Boards.Board(c)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return b, true
}

// openBoard is board plus switching it to the {productID} in the path.
func (h *Handler) openBoard(w http.ResponseWriter, r *http.Request) (*assignboard.Board, bool) {
	b, ok := h.board(w, r)
	if !ok {
		return nil, false
	}
	productID := normalize.ID(chi.URLParam(r, "productID"))
	if b.ProductID() == productID {
		return b, true
	}
	if _, err := b.Open(r.Context(), productID); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return b, true
}

// fail maps engine errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *reconcile.ValidationError
	var rf *reconcile.RemoteFailure

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, reconcile.ErrAttemptInFlight),
		errors.Is(err, reconcile.ErrSuperseded),
		errors.Is(err, assignboard.ErrCandidatesClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNoCredential), errors.Is(err, auth.ErrCredentialExpired):
		writeError(w, http.StatusUnauthorized, "backend credential missing or expired")
	case errors.As(err, &rf):
		h.Log.Warn("assign rejected by backend",
			zap.String("path", r.URL.Path), zap.Error(err))
		msg := "Failed to assign product"
		var apiErr *assignclient.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		writeError(w, http.StatusBadGateway, msg)
	default:
		h.Log.Error("assign request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
