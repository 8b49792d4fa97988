// internal/app/features/assignapi/routes.go
package assignapi

import "github.com/go-chi/chi/v5"

// Routes returns the API router, mounted under /api/v1.
func Routes(h *Handler, tokens *TokenVerifier) chi.Router {
	r := chi.NewRouter()
	r.Use(tokens.Require)

	r.Get("/users", h.ListUsers)
	r.Post("/users", h.CreateUser)

	r.Route("/assign-product", func(ar chi.Router) {
		ar.Get("/get-assigned-users/{productId}", h.AssignedUsers)
		ar.Post("/assign", h.Assign)
		ar.Get("/history/{productId}", h.History)
	})

	return r
}
