package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllow_WindowAndExpiry(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.now = clock.Now

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third request in window should be rejected")
	}
	if got := l.Remaining("a"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if !l.Allow("b") {
		t.Error("other keys have their own window")
	}

	clock.Advance(time.Minute + time.Second)
	if !l.Allow("a") {
		t.Error("request after window expiry should be allowed")
	}
	if got := l.Remaining("a"); got != 1 {
		t.Errorf("Remaining after expiry = %d, want 1", got)
	}
}

func TestReset(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected limit")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("Reset should clear the window")
	}
}

func TestStop_Idempotent(t *testing.T) {
	l := New(1, time.Minute)
	l.Stop()
	l.Stop()
}

func TestMiddleware(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()
	h := Middleware(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/session", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1"); rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if rec := send("10.0.0.2"); rec.Code != http.StatusNoContent {
		t.Errorf("other client status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded first hop", "203.0.113.5, 10.0.0.1", "", "10.0.0.9:1", "203.0.113.5"},
		{"real ip", "", " 198.51.100.7 ", "10.0.0.9:1", "198.51.100.7"},
		{"remote with port", "", "", "192.0.2.1:4000", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
