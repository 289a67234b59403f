// internal/app/features/courses/manage.go
package courses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/app/system/txn"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.uber.org/zap"
)

type createRequest struct {
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Description string       `json:"description"`
	Price       money.Amount `json:"price"`
	IsAvailable bool         `json:"is_available"`
	StartDate   time.Time    `json:"start_date"`
}

// updateRequest carries only the fields being changed.
type updateRequest struct {
	Title       *string       `json:"title"`
	Author      *string       `json:"author"`
	Description *string       `json:"description"`
	Price       *money.Amount `json:"price"`
	IsAvailable *bool         `json:"is_available"`
	StartDate   *time.Time    `json:"start_date"`
}

// HandleCreate handles POST /courses (admin).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode course body failed", err, "Invalid JSON body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Courses.Create(ctx, models.Course{
		Title:       req.Title,
		Author:      req.Author,
		Description: htmlsanitize.Sanitize(req.Description),
		Price:       req.Price,
		IsAvailable: req.IsAvailable,
		StartDate:   req.StartDate.UTC(),
	})
	if errors.Is(err, coursestore.ErrInvalid) {
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error creating course", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, c.ID, audit.EventCourseCreated, c.Title)
	uierrors.WriteJSON(w, http.StatusCreated, courseView{Course: c})
}

// HandleUpdate handles PATCH /courses/{id} (admin).
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Course not found.")
		return
	}
	var req updateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode course body failed", err, "Invalid JSON body.")
		return
	}
	if req.Description != nil {
		clean := htmlsanitize.Sanitize(*req.Description)
		req.Description = &clean
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Courses.Update(ctx, id, coursestore.Update(req))
	switch {
	case errors.Is(err, coursestore.ErrNotFound):
		h.ErrLog.NotFound(w, "Course not found.")
		return
	case errors.Is(err, coursestore.ErrInvalid):
		uierrors.WriteError(w, http.StatusBadRequest, uierrors.CodeBadRequest, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "database error updating course", err, "A database error occurred.")
		return
	}

	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, c.ID, audit.EventCourseUpdated, c.Title)
	uierrors.WriteJSON(w, http.StatusOK, courseView{Course: c})
}

// errActiveSubscriptions stops a delete from inside its transaction.
var errActiveSubscriptions = errors.New("course has active subscriptions")

// HandleDelete handles DELETE /courses/{id} (admin). A course with active
// subscriptions cannot be deleted; its lessons and groups go with it. The
// check and the deletes run under the course lock in one transaction that
// claims the course first, so a payment cannot enroll in between.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Course not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	release, err := h.Locker.Acquire(ctx, enrollment.CourseKey(id), h.LockTTL)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "acquire course lock failed", err, "The course is busy, please retry.")
		return
	}
	defer release()

	var (
		c               models.Course
		lessons, groups int64
	)
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if c, err = h.Courses.Claim(ctx, id); err != nil {
			return err
		}
		active, err := h.Subscriptions.CountActiveByCourse(ctx, id)
		if err != nil {
			return fmt.Errorf("count subscriptions: %w", err)
		}
		if active > 0 {
			return errActiveSubscriptions
		}
		if lessons, err = h.Lessons.DeleteByCourse(ctx, id); err != nil {
			return fmt.Errorf("delete lessons: %w", err)
		}
		if groups, err = h.Groups.DeleteByCourse(ctx, id); err != nil {
			return fmt.Errorf("delete groups: %w", err)
		}
		if _, err = h.Courses.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, coursestore.ErrNotFound):
		h.ErrLog.NotFound(w, "Course not found.")
		return
	case errors.Is(err, errActiveSubscriptions):
		uierrors.WriteError(w, http.StatusConflict, uierrors.CodeConflict, "Course has active subscriptions.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "database error deleting course", err, "A database error occurred.")
		return
	}

	h.Log.Info("course deleted",
		zap.String("course_id", id.Hex()),
		zap.Int64("lessons", lessons),
		zap.Int64("groups", groups))
	actorID, _ := authz.UserID(r)
	h.AuditLog.CatalogChanged(ctx, r, actorID, id, audit.EventCourseDeleted, c.Title)
	w.WriteHeader(http.StatusNoContent)
}
