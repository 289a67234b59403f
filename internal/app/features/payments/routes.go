// internal/app/features/payments/routes.go
package payments

import (
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Mount registers /{id}/pay on the signed-in courses router.
func Mount(h *Handler, sm *auth.SessionManager) func(chi.Router) {
	return func(r chi.Router) {
		r.With(sm.RequireRole(models.RoleStudent)).Post("/{id}/pay", h.HandlePay)
	}
}
