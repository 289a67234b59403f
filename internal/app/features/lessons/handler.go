// internal/app/features/lessons/handler.go
package lessons

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	lessonstore "github.com/dalemusser/coursehub/internal/app/store/lessons"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the lessons of a course.
type Handler struct {
	Courses  *coursestore.Store
	Lessons  *lessonstore.Store
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Courses:  coursestore.New(db),
		Lessons:  lessonstore.New(db),
		ErrLog:   errLog,
		AuditLog: auditLog,
		Log:      logger,
	}
}

type lessonRequest struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// course resolves {id} to a course the caller may see. It writes the error
// response and returns ok=false when it cannot.
func (h *Handler) course(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Course, bool) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Course not found.")
		return models.Course{}, false
	}
	c, err := h.Courses.GetByID(ctx, id)
	if errors.Is(err, coursestore.ErrNotFound) || (err == nil && !c.IsAvailable && !authz.IsAdmin(r)) {
		h.ErrLog.NotFound(w, "Course not found.")
		return models.Course{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading course", err, "A database error occurred.")
		return models.Course{}, false
	}
	return c, true
}

func (h *Handler) lessonID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := shared.ObjectIDParam(r, "lessonID")
	if err != nil {
		h.ErrLog.NotFound(w, "Lesson not found.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServeList handles GET /courses/{id}/lessons.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	rows, err := h.Lessons.ListByCourse(ctx, c.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error listing lessons", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.ListResponse[models.Lesson]{Items: rows})
}

// ServeLesson handles GET /courses/{id}/lessons/{lessonID}.
func (h *Handler) ServeLesson(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	id, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	l, err := h.Lessons.Get(ctx, c.ID, id)
	if errors.Is(err, lessonstore.ErrNotFound) {
		h.ErrLog.NotFound(w, "Lesson not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading lesson", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, l)
}

// HandleCreate handles POST /courses/{id}/lessons (admin).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode lesson body failed", err, "Invalid JSON body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	l, err := h.Lessons.Create(ctx, models.Lesson{CourseID: c.ID, Title: req.Title, Link: req.Link})
	if errors.Is(err, lessonstore.ErrInvalid) {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error creating lesson", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, c.ID, audit.EventLessonCreated, l.Title)
	uierrors.WriteJSON(w, http.StatusCreated, l)
}

// HandleUpdate handles PATCH /courses/{id}/lessons/{lessonID} (admin).
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode lesson body failed", err, "Invalid JSON body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	id, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	l, err := h.Lessons.Update(ctx, c.ID, id, req.Title, req.Link)
	if errors.Is(err, lessonstore.ErrNotFound) {
		h.ErrLog.NotFound(w, "Lesson not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error updating lesson", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, c.ID, audit.EventLessonUpdated, l.Title)
	uierrors.WriteJSON(w, http.StatusOK, l)
}

// HandleDelete handles DELETE /courses/{id}/lessons/{lessonID} (admin).
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok := h.course(ctx, w, r)
	if !ok {
		return
	}
	id, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	n, err := h.Lessons.Delete(ctx, c.ID, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error deleting lesson", err, "A database error occurred.")
		return
	}
	if n == 0 {
		h.ErrLog.NotFound(w, "Lesson not found.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, c.ID, audit.EventLessonDeleted, id.Hex())
	w.WriteHeader(http.StatusNoContent)
}
