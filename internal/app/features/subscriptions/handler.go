// internal/app/features/subscriptions/handler.go
package subscriptions

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	subscriptionstore "github.com/dalemusser/coursehub/internal/app/store/subscriptions"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Subscriptions *subscriptionstore.Store
	ErrLog        *uierrors.ErrorLogger
	AuditLog      *auditlog.Logger
	Log           *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Subscriptions: subscriptionstore.New(db),
		ErrLog:        errLog,
		AuditLog:      auditLog,
		Log:           logger,
	}
}

// ServeMine handles GET /subscriptions. ?active=true limits the list to
// active subscriptions.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	activeOnly := query.Get(r, "active") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	subs, err := h.Subscriptions.ListByUser(ctx, userID, activeOnly)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error listing subscriptions", err, "A database error occurred.")
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.ListResponse[models.Subscription]{Items: subs})
}

// HandleDeactivate handles POST /subscriptions/{id}/deactivate (admin).
// Deactivating an inactive subscription succeeds without a second audit
// record.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Subscription not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sub, err := h.Subscriptions.GetByID(ctx, id)
	if errors.Is(err, subscriptionstore.ErrNotFound) {
		h.ErrLog.NotFound(w, "Subscription not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading subscription", err, "A database error occurred.")
		return
	}

	wasActive := sub.IsActive
	if wasActive {
		if err := h.Subscriptions.Deactivate(ctx, id); err != nil {
			h.ErrLog.LogServerError(w, r, "database error deactivating subscription", err, "A database error occurred.")
			return
		}
		if sub, err = h.Subscriptions.GetByID(ctx, id); err != nil {
			h.ErrLog.LogServerError(w, r, "database error reloading subscription", err, "A database error occurred.")
			return
		}
		actorID, _ := authz.UserID(r)
		h.AuditLog.SubscriptionDeactivated(ctx, r, actorID, sub)
		h.Log.Info("subscription deactivated",
			zap.String("subscription_id", id.Hex()),
			zap.String("user_id", sub.UserID.Hex()),
			zap.String("course_id", sub.CourseID.Hex()))
	}
	uierrors.WriteJSON(w, http.StatusOK, sub)
}
