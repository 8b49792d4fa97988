// internal/app/features/assign/routes.go
package assign

import (
	"net/http"

	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
)

// CSRFHeader carries the request's CSRF token back to the operator client.
const CSRFHeader = "X-CSRF-Token"

// Routes returns the router for the operator endpoints, mounted under /assign.
// signInLimit, when non-nil, wraps the sign-in endpoint.
func Routes(h *Handler, sm *auth.SessionManager, signInLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(exposeCSRFToken)

	if signInLimit != nil {
		r.With(signInLimit).Post("/session", h.SignIn)
	} else {
		r.Post("/session", h.SignIn)
	}

	r.Group(func(pr chi.Router) {
		// Everything else needs a backend credential in the session
		pr.Use(sm.RequireCredential)

		pr.Delete("/session", h.SignOut)
		pr.Get("/candidates", h.Candidates)
		pr.Delete("/candidates", h.CloseCandidates)

		pr.Route("/{productID}", func(p chi.Router) {
			p.Get("/", h.Show)
			p.Post("/assign", h.Assign)
			p.Post("/unassign", h.Unassign)
			p.Post("/unassign-selected", h.UnassignSelected)
			p.Post("/select", h.Select)
			p.Post("/select-all", h.SelectAll)
			p.Post("/select-clear", h.ClearSelection)
		})
	})

	return r
}

// exposeCSRFToken copies the token minted by the CSRF middleware, when one
// is active, into CSRFHeader so JSON clients can echo it on writes.
func exposeCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := csrf.Token(r); tok != "" {
			w.Header().Set(CSRFHeader, tok)
		}
		next.ServeHTTP(w, r)
	})
}
