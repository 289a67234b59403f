// internal/app/features/payments/handler.go
package payments

import (
	"context"
	"net/http"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/ratelimit"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Payer runs the pay workflow. *enrollment.Service implements it.
type Payer interface {
	Pay(ctx context.Context, userID, courseID primitive.ObjectID) (enrollment.Result, error)
}

// Handler exposes the pay workflow over HTTP.
type Handler struct {
	Payer    Payer
	Limiter  *ratelimit.Limiter // per user; nil disables throttling
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(payer Payer, limiter *ratelimit.Limiter, errLog *uierrors.ErrorLogger,
	auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Payer:    payer,
		Limiter:  limiter,
		ErrLog:   errLog,
		AuditLog: auditLog,
		Log:      logger,
	}
}

type payResponse struct {
	PaymentID      string `json:"payment_id"`
	SubscriptionID string `json:"subscription_id"`
	CourseID       string `json:"course_id"`
	GroupID        string `json:"group_id"`
	GroupName      string `json:"group_name"`
	Balance        string `json:"balance"`
}

// HandlePay handles POST /courses/{id}/pay.
//
//	201  paid, enrolled and placed
//	402  insufficient_funds
//	404  course_not_found / user_not_found
//	409  already_enrolled
//	429  too many pay requests from this user
//	503  invariant_violation (retry)
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}
	courseID, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		uierrors.WriteError(w, http.StatusNotFound, enrollment.Outcome(enrollment.ErrCourseNotFound), "Course not found.")
		return
	}

	if h.Limiter != nil {
		if ok, wait := h.Limiter.Allow(userID.Hex()); !ok {
			h.AuditLog.PaymentRateLimited(r.Context(), r, userID, courseID)
			ratelimit.TooManyRequests(w, wait)
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Pay(), h.Log, "pay")
	defer cancel()

	res, err := h.Payer.Pay(ctx, userID, courseID)
	if err != nil {
		h.ErrLog.WriteEnrollmentError(w, r, err)
		return
	}

	uierrors.WriteJSON(w, http.StatusCreated, payResponse{
		PaymentID:      res.PaymentID,
		SubscriptionID: res.Subscription.ID.Hex(),
		CourseID:       res.Subscription.CourseID.Hex(),
		GroupID:        res.Group.ID.Hex(),
		GroupName:      res.Group.Name,
		Balance:        res.Balance.String(),
	})
}
