package assign_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/assignhub/internal/app/features/assign"
	assignmentstore "github.com/dalemusser/assignhub/internal/app/store/assignments"
	"github.com/dalemusser/assignhub/internal/app/system/assignboard"
	"github.com/dalemusser/assignhub/internal/app/system/assignclient"
	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/dalemusser/assignhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fakeBackend is both the Assigner and the Directory.
type fakeBackend struct {
	mu       sync.Mutex
	assigned map[string]bool
	failNext error
	users    []models.Customer
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		assigned: map[string]bool{},
		users: []models.Customer{
			{ID: "u1", Name: "Ada", Email: "ada@example.com"},
			{ID: "u2", Name: "Grace", Email: "grace@example.com"},
			{ID: "u3", Name: "Linus", Email: "linus@example.com"},
		},
	}
}

func (f *fakeBackend) Assign(_ context.Context, productID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	key := productID + "/" + customerID
	if f.assigned[key] {
		return reconcile.ErrDuplicateAssignment
	}
	f.assigned[key] = true
	return nil
}

func (f *fakeBackend) ListUsers(context.Context, int, int) ([]models.Customer, error) {
	return f.users, nil
}

func newTestHandler(t *testing.T, backend *fakeBackend) (*assign.Handler, *auth.SessionManager) {
	t.Helper()
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	factory := func(oauth2.TokenSource) (*assignboard.Board, error) {
		rec := reconcile.New(backend, func() *assignmentstore.Store {
			return assignmentstore.New(assignmentstore.Options{Logger: logger})
		}, logger)
		return assignboard.New(rec, backend, assignboard.Options{PageSize: 2, Logger: logger}), nil
	}
	return assign.NewHandler(assign.NewRegistry(factory, logger), sm, logger), sm
}

func request(method, target, body, productID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req = testutil.WithSession(req, "session-1", "tok")
	if productID != "" {
		req = testutil.WithChiURLParam(req, "productID", productID)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type assignResponse struct {
	Result struct {
		Outcome string `json:"outcome"`
		State   string `json:"state"`
		Notice  string `json:"notice"`
	} `json:"result"`
	View assignboard.View `json:"view"`
}

func doAssign(t *testing.T, h *assign.Handler, productID, customerID string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Candidates(rec, request("GET", "/assign/candidates", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates: status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.Assign(rec, request("POST", "/assign/"+productID+"/assign", `{"customerId":"`+customerID+`"}`, productID))
	return rec
}

func TestShow_OpensProduct(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())

	rec := httptest.NewRecorder()
	h.Show(rec, request("GET", "/assign/p1", "", "p1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var v assignboard.View
	decodeBody(t, rec, &v)
	if v.ProductID != "p1" || v.Range.Total != 0 || v.Attempt != "idle" {
		t.Errorf("view: %+v", v)
	}
}

func TestAssign_ConfirmedThenDuplicate(t *testing.T) {
	backend := newFakeBackend()
	h, _ := newTestHandler(t, backend)

	rec := doAssign(t, h, "p1", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp assignResponse
	decodeBody(t, rec, &resp)
	if resp.Result.Outcome != "confirmed" || resp.View.Range.Total != 1 {
		t.Errorf("first assign: %+v", resp)
	}

	rec = doAssign(t, h, "p1", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate assign: status %d", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if resp.Result.Outcome != "already_assigned" || resp.Result.Notice == "" {
		t.Errorf("duplicate result: %+v", resp.Result)
	}
	if resp.View.Range.Total != 1 || resp.View.Records[0].Status != models.AssignmentConfirmed {
		t.Errorf("duplicate must leave exactly one confirmed record: %+v", resp.View)
	}
}

func TestAssign_Errors(t *testing.T) {
	tests := []struct {
		name     string
		failNext error
		body     string
		want     int
		wantMsg  string
	}{
		{"unknown candidate", nil, `{"customerId":"nobody"}`, http.StatusBadRequest, ""},
		{"bad json", nil, `{`, http.StatusBadRequest, "invalid request body"},
		{"backend failure", errors.New("timeout"), `{"customerId":"u1"}`, http.StatusBadGateway, "Failed to assign product"},
		{"backend message", &assignclient.APIError{Status: 500, Message: "Product not found"}, `{"customerId":"u1"}`, http.StatusBadGateway, "Product not found"},
		{"expired credential", auth.ErrCredentialExpired, `{"customerId":"u1"}`, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.failNext = tt.failNext
			h, _ := newTestHandler(t, backend)

			rec := httptest.NewRecorder()
			h.Candidates(rec, request("GET", "/assign/candidates", "", ""))

			rec = httptest.NewRecorder()
			h.Assign(rec, request("POST", "/assign/p1/assign", tt.body, "p1"))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			var body map[string]string
			decodeBody(t, rec, &body)
			if tt.wantMsg != "" && body["error"] != tt.wantMsg {
				t.Errorf("error: got %q, want %q", body["error"], tt.wantMsg)
			}

			rec = httptest.NewRecorder()
			h.Show(rec, request("GET", "/assign/p1", "", "p1"))
			var v assignboard.View
			decodeBody(t, rec, &v)
			if v.Range.Total != 0 {
				t.Errorf("failed assign must leave no record: %+v", v.Records)
			}
		})
	}
}

func TestSelectionAndBulkUnassign(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())
	for _, id := range []string{"u1", "u2", "u3"} {
		if rec := doAssign(t, h, "p1", id); rec.Code != http.StatusOK {
			t.Fatalf("assign %s: %d", id, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.SelectAll(rec, request("POST", "/assign/p1/select-all", "", "p1"))
	var v assignboard.View
	decodeBody(t, rec, &v)
	if !v.AllSelected || len(v.Selected) != 2 {
		t.Fatalf("select-all on a 2-row page: %+v", v)
	}

	rec = httptest.NewRecorder()
	h.Select(rec, request("POST", "/assign/p1/select", `{"customerId":"u2","included":false}`, "p1"))
	decodeBody(t, rec, &v)
	if !v.PartiallySelected || len(v.Selected) != 1 {
		t.Errorf("after deselect: %+v", v)
	}

	rec = httptest.NewRecorder()
	h.UnassignSelected(rec, request("POST", "/assign/p1/unassign-selected", "", "p1"))
	var resp struct {
		Removed int              `json:"removed"`
		View    assignboard.View `json:"view"`
	}
	decodeBody(t, rec, &resp)
	if resp.Removed != 1 || resp.View.Range.Total != 2 || len(resp.View.Selected) != 0 {
		t.Errorf("unassign-selected: %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.Unassign(rec, request("POST", "/assign/p1/unassign", `{"customerId":"u3"}`, "p1"))
	decodeBody(t, rec, &v)
	if v.Range.Total != 1 || v.Records[0].CustomerID != "u2" {
		t.Errorf("unassign: %+v", v)
	}
}

func TestShow_Paging(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())
	for _, id := range []string{"u1", "u2", "u3"} {
		doAssign(t, h, "p1", id)
	}

	rec := httptest.NewRecorder()
	h.Show(rec, request("GET", "/assign/p1?page=2", "", "p1"))
	var v assignboard.View
	decodeBody(t, rec, &v)
	if v.Range.Page != 2 || len(v.Records) != 1 || v.Records[0].CustomerID != "u3" {
		t.Errorf("page 2: %+v", v)
	}

	rec = httptest.NewRecorder()
	h.Show(rec, request("GET", "/assign/p1?page=9", "", "p1"))
	decodeBody(t, rec, &v)
	if v.Range.Page != 2 {
		t.Errorf("page past the end should clamp, got %d", v.Range.Page)
	}
}

func TestRoutes_RequireSession(t *testing.T) {
	h, sm := newTestHandler(t, newFakeBackend())
	router := assign.Routes(h, sm, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/p1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without session: expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/session", strings.NewReader(`{"token":"tok"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in: expected %d, got %d", http.StatusOK, rec.Code)
	}
	cookies := rec.Result().Cookies()

	req := httptest.NewRequest("GET", "/p1", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with session: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if h.Boards.Len() != 1 {
		t.Errorf("expected one board, got %d", h.Boards.Len())
	}
}

func TestSignIn_RequiresToken(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())
	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest("POST", "/assign/session", strings.NewReader(`{"token":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())
	if _, err := h.Boards.Board(auth.Credential{SessionID: "a", Token: "t"}); err != nil {
		t.Fatal(err)
	}

	if n := h.Boards.EvictIdle(context.Background(), time.Hour); n != 0 {
		t.Errorf("fresh board evicted: %d", n)
	}
	if n := h.Boards.EvictIdle(context.Background(), -time.Second); n != 1 {
		t.Errorf("expected one eviction, got %d", n)
	}
	if h.Boards.Len() != 0 {
		t.Errorf("registry not empty after eviction")
	}
}

func TestRoutes_NoCSRFHeaderWithoutMiddleware(t *testing.T) {
	h, sm := newTestHandler(t, newFakeBackend())
	router := assign.Routes(h, sm, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/session", strings.NewReader(`{"token":"tok"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if got := rec.Header().Get(assign.CSRFHeader); got != "" {
		t.Errorf("%s = %q, want empty when no CSRF middleware is installed", assign.CSRFHeader, got)
	}
}

func TestCandidates_DisplayLabels(t *testing.T) {
	backend := newFakeBackend()
	backend.users = append(backend.users, models.Customer{ID: "65f1c2ab9e0d4c7a1b2c3d4e", Name: "barbara"})
	h, _ := newTestHandler(t, backend)

	rec := httptest.NewRecorder()
	h.Candidates(rec, request("GET", "/assign/candidates", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var body struct {
		Candidates []struct {
			ID      string `json:"id"`
			ShortID string `json:"shortId"`
			Initial string `json:"initial"`
		} `json:"candidates"`
	}
	decodeBody(t, rec, &body)
	if len(body.Candidates) != 4 {
		t.Fatalf("candidates: %+v", body.Candidates)
	}
	last := body.Candidates[3]
	if last.ShortID != "2C3D4E" || last.Initial != "B" {
		t.Errorf("labels: got %q/%q, want 2C3D4E/B", last.ShortID, last.Initial)
	}
	if first := body.Candidates[0]; first.ID != "u1" || first.ShortID != "U1" || first.Initial != "A" {
		t.Errorf("first: %+v", first)
	}
}

func TestShow_ShortIDsForPageRows(t *testing.T) {
	h, _ := newTestHandler(t, newFakeBackend())
	if rec := doAssign(t, h, "p1", "u1"); rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.Show(rec, request("GET", "/assign/p1", "", "p1"))
	var v assignboard.View
	decodeBody(t, rec, &v)
	if v.ShortIDs["u1"] != "U1" {
		t.Errorf("shortIds: %+v", v.ShortIDs)
	}
}
