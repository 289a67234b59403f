// internal/app/features/subscriptions/routes.go
package subscriptions

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeMine)

		pr.With(sm.RequireRole(models.RoleAdmin)).Post("/{id}/deactivate", h.HandleDeactivate)
	})

	return r
}
