// internal/app/features/courses/routes.go
package courses

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the catalog. extra lets sibling features (lessons, groups,
// pay) hang their routes under /courses/{id}.
func Routes(h *Handler, sm *auth.SessionManager, extra ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeCourse)

		pr.Group(func(ar chi.Router) {
			ar.Use(sm.RequireRole(models.RoleAdmin))
			ar.Post("/", h.HandleCreate)
			ar.Patch("/{id}", h.HandleUpdate)
			ar.Delete("/{id}", h.HandleDelete)
		})

		for _, mount := range extra {
			mount(pr)
		}
	})

	return r
}
