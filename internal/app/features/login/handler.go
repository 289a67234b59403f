// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	userstore "github.com/dalemusser/coursehub/internal/app/store/users"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/app/system/ratelimit"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter // nil disables login throttling
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger,
	auditLog *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   auditLog,
		Limiter:    limiter,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// HandleLoginPost handles POST /login.
//
// Unknown email and wrong password both answer 401 with the same body so
// the endpoint does not reveal which accounts exist.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login body failed", err, "Invalid JSON body.")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Email and password are required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, wait := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailed(ctx, r, nil, email, audit.EventLoginFailedRateLimit, "rate limited")
			ratelimit.TooManyRequests(w, wait)
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.AuditLog.LoginFailed(ctx, r, nil, email, audit.EventLoginFailedUserNotFound, "user not found")
		invalidCredentials(w)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "database error finding user", err, "A database error occurred.")
		return
	}

	if !userstore.CheckPassword(u, req.Password) {
		h.AuditLog.LoginFailed(ctx, r, &u.ID, email, audit.EventLoginFailedWrongPassword, "wrong password")
		invalidCredentials(w)
		return
	}

	/*── check status: disabled users cannot log in ────────────────────────*/

	if u.Status == userstore.StatusDisabled {
		h.AuditLog.LoginFailed(ctx, r, &u.ID, email, audit.EventLoginFailedUserDisabled, "user disabled")
		uierrors.Forbidden(w, "Your account is currently disabled. Please contact an administrator.")
		return
	}

	su := auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName(),
		Email: u.Email,
		Role:  u.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not sign you in.")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	h.Log.Info("user signed in", zap.String("user_id", su.ID), zap.String("role", su.Role))

	uierrors.WriteJSON(w, http.StatusOK, loginResponse{
		ID:    su.ID,
		Name:  su.Name,
		Email: su.Email,
		Role:  su.Role,
	})
}

func invalidCredentials(w http.ResponseWriter) {
	uierrors.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect.")
}
