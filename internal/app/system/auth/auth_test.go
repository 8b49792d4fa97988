package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

// signIn runs SignIn and returns a request carrying the resulting cookie.
func signIn(t *testing.T, sm *auth.SessionManager, token string, expiry time.Time) (*http.Request, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	id, err := sm.SignIn(rec, httptest.NewRequest("POST", "/assign/session", nil), token, expiry)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	req := httptest.NewRequest("GET", "/assign/p1", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req, id
}

func TestSignIn_RoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	req, id := signIn(t, sm, "tok-123", time.Now().Add(time.Hour))

	c, err := sm.Credential(req)
	if err != nil {
		t.Fatalf("Credential failed: %v", err)
	}
	if c.SessionID != id || c.Token != "tok-123" {
		t.Errorf("credential: %+v", c)
	}
}

func TestSignIn_EmptyToken(t *testing.T) {
	sm := newTestSessionManager(t)
	_, err := sm.SignIn(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil), "", time.Time{})
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("got %v, want ErrNoCredential", err)
	}
}

func TestCredential_Missing(t *testing.T) {
	sm := newTestSessionManager(t)
	_, err := sm.Credential(httptest.NewRequest("GET", "/", nil))
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("got %v, want ErrNoCredential", err)
	}
}

func TestCredential_Expired(t *testing.T) {
	sm := newTestSessionManager(t)
	req, _ := signIn(t, sm, "tok", time.Now().Add(-time.Minute))

	if _, err := sm.Credential(req); !errors.Is(err, auth.ErrCredentialExpired) {
		t.Errorf("got %v, want ErrCredentialExpired", err)
	}
}

func TestRequireCredential(t *testing.T) {
	sm := newTestSessionManager(t)

	var seen auth.Credential
	handler := sm.RequireCredential(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/assign/p1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no session: expected %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	req, _ := signIn(t, sm, "tok", time.Time{})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with session: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if seen.Token != "tok" {
		t.Errorf("credential in context: %+v", seen)
	}
}

func TestSignOut(t *testing.T) {
	sm := newTestSessionManager(t)
	req, _ := signIn(t, sm, "tok", time.Time{})

	rec := httptest.NewRecorder()
	if err := sm.SignOut(rec, req); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	out := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		out.AddCookie(c)
	}
	if _, err := sm.Credential(out); !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("after sign out: got %v, want ErrNoCredential", err)
	}
}

func TestNewSessionManager_EmptyKeyGeneratesOne(t *testing.T) {
	sm, err := auth.NewSessionManager("", "s", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	req, _ := signIn(t, sm, "tok", time.Time{})
	if _, err := sm.Credential(req); err != nil {
		t.Errorf("random key session should round trip: %v", err)
	}
}

func TestTokenHolder(t *testing.T) {
	var h auth.TokenHolder

	if _, err := h.Token(); !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("empty holder: got %v", err)
	}

	h.Set(auth.Credential{Token: "abc"})
	tok, err := h.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != "abc" || tok.Type() != "Bearer" {
		t.Errorf("token: %+v", tok)
	}

	h.Set(auth.Credential{Token: "abc", Expiry: time.Now().Add(-time.Hour)})
	if _, err := h.Token(); !errors.Is(err, auth.ErrCredentialExpired) {
		t.Errorf("expired: got %v", err)
	}

	h.Set(auth.Credential{})
	if _, err := h.Token(); !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("cleared: got %v", err)
	}
}
