package lessons_test

import (
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/lessons"
	"github.com/dalemusser/coursehub/internal/app/system/auth"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (chi.Router, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	// A nil audit logger is a no-op.
	h := lessons.NewHandler(db, uierrors.NewErrorLogger(logger), nil, logger)

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		lessons.Mount(h, sm)(pr)
	})
	return r, testutil.NewFixtures(t, db)
}

func TestLessons_CRUD(t *testing.T) {
	router, fixtures := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := fixtures.CreateCourse(ctx, "Go", "10.00", true)
	base := "/" + c.ID.Hex() + "/lessons"

	rec := testutil.NewRecorder()
	req := testutil.NewJSONRequest(t, "POST", base, map[string]string{"title": "Goroutines", "link": "https://example.com/g"})
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)

	var created models.Lesson
	rec.DecodeJSON(t, &created)
	if created.CourseID != c.ID || created.Title != "Goroutines" {
		t.Fatalf("unexpected lesson %+v", created)
	}
	item := base + "/" + created.ID.Hex()

	rec = testutil.NewRecorder()
	req = testutil.NewJSONRequest(t, "PATCH", item, map[string]string{"title": "Channels"})
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"Channels"`)
	rec.AssertContains(t, "https://example.com/g")

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", base, testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"Channels"`)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("DELETE", item, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusNoContent)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", item, testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestLessons_StudentsCannotWrite(t *testing.T) {
	router, fixtures := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := fixtures.CreateCourse(ctx, "Go", "10.00", true)

	rec := testutil.NewRecorder()
	req := testutil.NewJSONRequest(t, "POST", "/"+c.ID.Hex()+"/lessons", map[string]string{"title": "x"})
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestLessons_WrongCourse(t *testing.T) {
	router, fixtures := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateCourse(ctx, "A", "1.00", true)
	b := fixtures.CreateCourse(ctx, "B", "1.00", true)
	l := fixtures.CreateLesson(ctx, a.ID, "only-in-a")

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/"+b.ID.Hex()+"/lessons/"+l.ID.Hex(), testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/"+primitive.NewObjectID().Hex()+"/lessons", testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestLessons_EmptyTitleRejected(t *testing.T) {
	router, fixtures := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := fixtures.CreateCourse(ctx, "Go", "10.00", true)

	rec := testutil.NewRecorder()
	req := testutil.NewJSONRequest(t, "POST", "/"+c.ID.Hex()+"/lessons", map[string]string{"title": "  "})
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
}
