package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// WithCredential adds an operator credential to the request context,
// bypassing the session cookie middleware.
func WithCredential(r *http.Request, token string) *http.Request {
	return auth.WithCredential(r, auth.Credential{
		SessionID: uuid.NewString(),
		Token:     token,
		Expiry:    time.Now().Add(time.Hour),
	})
}

// WithSession is WithCredential for a fixed session ID, so several requests
// share one operator board.
func WithSession(r *http.Request, sessionID, token string) *http.Request {
	return auth.WithCredential(r, auth.Credential{SessionID: sessionID, Token: token})
}
