// internal/app/features/balances/routes.go
package balances

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves GET /balance.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeBalance)
	})
	return r
}

// MountCredit registers /{id}/balance/credit on the admin users router.
func MountCredit(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/{id}/balance/credit", h.HandleCredit)
	}
}
