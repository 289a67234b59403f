// internal/app/features/courses/list.go
package courses

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/shared"
	coursestore "github.com/dalemusser/coursehub/internal/app/store/courses"
	"github.com/dalemusser/coursehub/internal/app/system/authz"
	"github.com/dalemusser/coursehub/internal/app/system/paging"
	"github.com/dalemusser/coursehub/internal/app/system/timeouts"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeList handles GET /courses.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var filter coursestore.ListFilter
	if !authz.IsAdmin(r) {
		held, err := h.Subscriptions.ActiveCourseIDs(ctx, userID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "database error loading subscriptions", err, "A database error occurred.")
			return
		}
		filter = coursestore.ListFilter{AvailableOnly: true, Exclude: held}
	}

	cfg := paging.FromRequest(r)
	rows, res, err := h.Courses.List(ctx, filter, cfg)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error listing courses", err, "A database error occurred.")
		return
	}

	ids := make([]primitive.ObjectID, len(rows))
	for i, c := range rows {
		ids[i] = c.ID
	}
	counts, err := h.Lessons.CountByCourses(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error counting lessons", err, "A database error occurred.")
		return
	}

	items := make([]courseView, len(rows))
	for i, c := range rows {
		items[i] = courseView{Course: c, LessonsCount: counts[c.ID]}
	}

	prev, next := paging.BuildCursors(rows,
		func(c models.Course) string { return c.TitleCI },
		func(c models.Course) primitive.ObjectID { return c.ID })
	out := shared.ListResponse[courseView]{Items: items, HasPrev: res.HasPrev, HasNext: res.HasNext}
	if res.HasPrev {
		out.PrevCursor = prev
	}
	if res.HasNext {
		out.NextCursor = next
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// ServeCourse handles GET /courses/{id}. Unavailable courses are hidden
// from students.
func (h *Handler) ServeCourse(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.NotFound(w, "Course not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Courses.GetByID(ctx, id)
	if errors.Is(err, coursestore.ErrNotFound) || (err == nil && !c.IsAvailable && !authz.IsAdmin(r)) {
		h.ErrLog.NotFound(w, "Course not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error loading course", err, "A database error occurred.")
		return
	}

	counts, err := h.Lessons.CountByCourses(ctx, []primitive.ObjectID{c.ID})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error counting lessons", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, courseView{Course: c, LessonsCount: counts[c.ID]})
}
