// internal/app/features/lessons/routes.go
package lessons

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Mount registers /{id}/lessons on the signed-in courses router.
func Mount(h *Handler, sm *auth.SessionManager) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/{id}/lessons", func(lr chi.Router) {
			lr.Get("/", h.ServeList)
			lr.Get("/{lessonID}", h.ServeLesson)

			lr.Group(func(ar chi.Router) {
				ar.Use(sm.RequireRole(models.RoleAdmin))
				ar.Post("/", h.HandleCreate)
				ar.Patch("/{lessonID}", h.HandleUpdate)
				ar.Delete("/{lessonID}", h.HandleDelete)
			})
		})
	}
}
