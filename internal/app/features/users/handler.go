// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	balancestore "github.com/dalemusser/coursehub/internal/app/store/balances"
	userstore "github.com/dalemusser/coursehub/internal/app/store/users"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/paging"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/app/system/txn"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *mongo.Database
	Users    *userstore.Store
	Balances *balancestore.Store
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Users:    userstore.New(db),
		Balances: balancestore.New(db),
		ErrLog:   errLog,
		AuditLog: auditLog,
		Log:      logger,
	}
}

type userView struct {
	models.User
	Balance *money.Amount `json:"balance,omitempty"`
}

type createRequest struct {
	Email          string        `json:"email"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	Password       string        `json:"password"`
	Role           string        `json:"role"`
	InitialBalance *money.Amount `json:"initial_balance"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleCreate handles POST /users (admin). The user and its balance row
// are written in one transaction.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode user body failed", err, "Invalid JSON body.")
		return
	}
	initial := money.Zero
	if req.InitialBalance != nil {
		if err := req.InitialBalance.Validate(); err != nil {
			uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, "initial_balance: "+err.Error())
			return
		}
		initial = *req.InitialBalance
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleStudent
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var created models.User
	var bal models.Balance
	err := txn.Run(ctx, h.DB, h.Log, func(tctx context.Context) error {
		u, err := h.Users.Create(tctx, models.User{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      role,
		}, req.Password)
		if err != nil {
			return err
		}
		b, err := h.Balances.Open(tctx, u.ID, initial)
		if err != nil {
			return err
		}
		created, bal = u, b
		return nil
	})
	switch {
	case errors.Is(err, userstore.ErrInvalid):
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, err.Error())
		return
	case errors.Is(err, userstore.ErrDuplicateEmail):
		uierrors.WriteError(w, http.StatusConflict, uierrors.CodeConflict, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "database error creating user", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.UserCreated(ctx, r, actorID, created.ID, created.Role, initial)
	h.Log.Info("user created",
		zap.String("user_id", created.ID.Hex()),
		zap.String("role", created.Role))

	uierrors.WriteJSON(w, http.StatusCreated, userView{User: created, Balance: &bal.Balance})
}

// ServeList handles GET /users (admin), ordered by email. ?role= filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	role := strings.ToLower(query.Get(r, "role"))
	if role != "" && role != models.RoleStudent && role != models.RoleAdmin {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, `role must be "student" or "admin"`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cfg := paging.FromRequest(r)
	rows, res, err := h.Users.List(ctx, role, cfg)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error listing users", err, "A database error occurred.")
		return
	}
	if rows == nil {
		rows = []models.User{}
	}

	prev, next := paging.BuildCursors(rows,
		func(u models.User) string { return u.EmailCI },
		func(u models.User) primitive.ObjectID { return u.ID })
	out := shared.ListResponse[models.User]{Items: rows, HasPrev: res.HasPrev, HasNext: res.HasNext}
	if res.HasPrev {
		out.PrevCursor = prev
	}
	if res.HasNext {
		out.NextCursor = next
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// ServeMe handles GET /users/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.NotFound(w, "User not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading user", err, "A database error occurred.")
		return
	}
	view := userView{User: u}
	b, err := h.Balances.Get(ctx, userID)
	switch {
	case err == nil:
		view.Balance = &b.Balance
	case !errors.Is(err, balancestore.ErrNotFound):
		h.ErrLog.LogServerError(w, r, "database error loading balance", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, view)
}

// HandleSetStatus handles POST /users/{id}/status (admin). A disabled user
// can no longer sign in.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "User not found.")
		return
	}
	var req statusRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode status body failed", err, "Invalid JSON body.")
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != userstore.StatusActive && status != userstore.StatusDisabled {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, `status must be "active" or "disabled"`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.ErrLog.NotFound(w, "User not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, "database error updating user status", err, "A database error occurred.")
		return
	}
	h.Log.Info("user status changed", zap.String("user_id", id.Hex()), zap.String("status", status))
	w.WriteHeader(http.StatusNoContent)
}
