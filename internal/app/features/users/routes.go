// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes serves /users. extra mounts admin-only sibling routes (balance
// credit) on the same {id} namespace.
func Routes(h *Handler, sm *auth.SessionManager, extra ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/me", h.ServeMe)

		pr.Group(func(ar chi.Router) {
			ar.Use(sm.RequireRole(models.RoleAdmin))
			ar.Get("/", h.ServeList)
			ar.Post("/", h.HandleCreate)
			ar.Post("/{id}/status", h.HandleSetStatus)
			for _, mount := range extra {
				mount(ar)
			}
		})
	})

	return r
}
