// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	groupstore "github.com/dalemusser/coursehub/internal/app/store/groups"
	subscriptionstore "github.com/dalemusser/coursehub/internal/app/store/subscriptions"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/keylock"
	"github.com/dalemusser/coursehub/internal/app/system/metrics"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the admin view of a course's groups. Manual creation takes
// the same per-course lock as placement so numbers are not handed out
// twice.
type Handler struct {
	Courses       *coursestore.Store
	Groups        *groupstore.Store
	Subscriptions *subscriptionstore.Store
	Locker        keylock.Locker
	LockTTL       time.Duration
	ErrLog        *uierrors.ErrorLogger
	AuditLog      *auditlog.Logger
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

func NewHandler(db *mongo.Database, locker keylock.Locker, errLog *uierrors.ErrorLogger,
	auditLog *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if locker == nil {
		locker = keylock.NewMemoryLocker()
	}
	return &Handler{
		Courses:       coursestore.New(db),
		Groups:        groupstore.New(db),
		Subscriptions: subscriptionstore.New(db),
		Locker:        locker,
		LockTTL:       enrollment.DefaultConfig().LockTTL,
		ErrLog:        errLog,
		AuditLog:      auditLog,
		Metrics:       m,
		Log:           logger,
	}
}

type groupView struct {
	models.Group
	Members int `json:"members"`
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *Handler) course(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Course, bool) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Course not found.")
		return models.Course{}, false
	}
	c, err := h.Courses.GetByID(ctx, id)
	if errors.Is(err, coursestore.ErrNotFound) {
		h.ErrLog.NotFound(w, "Course not found.")
		return models.Course{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading course", err, "A database error occurred.")
		return models.Course{}, false
	}
	return c, true
}

// ServeList handles GET /courses/{id}/groups.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	groups, err := h.Groups.ListByCourse(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error listing groups", err, "A database error occurred.")
		return
	}
	counts, err := h.Subscriptions.CountActiveByGroup(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error counting members", err, "A database error occurred.")
		return
	}

	items := make([]groupView, len(groups))
	for i, g := range groups {
		items[i] = groupView{Group: g, Members: counts[g.ID]}
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.ListResponse[groupView]{Items: items})
}

// HandleCreate handles POST /courses/{id}/groups. The body is optional;
// without a name the group is called "Group <number>".
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		h.ErrLog.LogBadRequest(w, r, "decode group body failed", err, "Invalid JSON body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}

	release, err := h.Locker.Acquire(ctx, enrollment.CourseKey(c.ID), h.LockTTL)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "acquire course lock failed", err, "The course is busy, please retry.")
		return
	}
	defer release()

	number, err := h.Groups.NextNumber(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error numbering group", err, "A database error occurred.")
		return
	}
	g, err := h.Groups.Create(ctx, models.Group{
		CourseID: c.ID,
		Number:   number,
		Name:     strings.TrimSpace(req.Name),
	})
	if errors.Is(err, groupstore.ErrDuplicateGroupNumber) {
		uierrors.WriteError(w, http.StatusConflict, uierrors.CodeConflict, "Another group was created at the same time, please retry.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error creating group", err, "A database error occurred.")
		return
	}

	h.Log.Info("group created",
		zap.String("course_id", c.ID.Hex()),
		zap.Int("number", g.Number),
		zap.String("reason", enrollment.ReasonManual))
	h.Metrics.GroupCreated(enrollment.ReasonManual)
	h.AuditLog.GroupCreated(ctx, g, enrollment.ReasonManual)
	uierrors.WriteJSON(w, http.StatusCreated, groupView{Group: g})
}
