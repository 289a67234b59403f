// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Mount registers /{id}/groups on the signed-in courses router. Groups
// are an admin concern; students learn their group from the pay response
// and their subscriptions.
func Mount(h *Handler, sm *auth.SessionManager) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/{id}/groups", func(gr chi.Router) {
			gr.Use(sm.RequireRole(models.RoleAdmin))
			gr.Get("/", h.ServeList)
			gr.Post("/", h.HandleCreate)
		})
	}
}
