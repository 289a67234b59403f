// internal/app/features/balances/handler.go
package balances

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	balancestore "github.com/dalemusser/coursehub/internal/app/store/balances"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Balances *balancestore.Store
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Balances: balancestore.New(db),
		ErrLog:   errLog,
		AuditLog: auditLog,
		Log:      logger,
	}
}

type balanceResponse struct {
	UserID  string       `json:"user_id"`
	Balance money.Amount `json:"balance"`
}

type creditRequest struct {
	Amount money.Amount `json:"amount"`
}

// ServeBalance handles GET /balance for the signed-in user.
func (h *Handler) ServeBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, err := h.Balances.Get(ctx, userID)
	if errors.Is(err, balancestore.ErrNotFound) {
		h.ErrLog.WriteEnrollmentError(w, r, err)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading balance", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, balanceResponse{UserID: userID.Hex(), Balance: b.Balance})
}

// HandleCredit handles POST /users/{id}/balance/credit (admin). Balances
// can only grow this way; there is no endpoint that sets a balance.
func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "User not found.")
		return
	}
	var req creditRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode credit body failed", err, "Invalid JSON body.")
		return
	}
	if err := req.Amount.Validate(); err != nil || !req.Amount.IsPositive() {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Amount must be a positive number up to 999999999.99 with at most 2 decimal places.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	balance, err := h.Balances.Credit(ctx, userID, req.Amount)
	if errors.Is(err, balancestore.ErrNotFound) {
		h.ErrLog.WriteEnrollmentError(w, r, err)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error crediting balance", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.BalanceCredited(ctx, r, actorID, userID, req.Amount, balance)
	h.Log.Info("balance credited",
		zap.String("user_id", userID.Hex()),
		zap.String("amount", req.Amount.String()),
		zap.String("balance", balance.String()))
	uierrors.WriteJSON(w, http.StatusOK, balanceResponse{UserID: userID.Hex(), Balance: balance})
}
