package balances_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/coursehub/internal/app/features/errors"
	"github.com/dalemusser/coursehub/internal/app/features/balances"
	"github.com/dalemusser/coursehub/internal/app/store/audit"
	"github.com/dalemusser/coursehub/internal/app/system/auditlog"
	"github.com/dalemusser/coursehub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*balances.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{})
	return balances.NewHandler(db, uierrors.NewErrorLogger(logger), auditLog, logger), testutil.NewFixtures(t, db)
}

func creditRouter(h *balances.Handler) chi.Router {
	r := chi.NewRouter()
	balances.MountCredit(h)(r)
	return r
}

func TestServeBalance(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateStudent(ctx, "s@example.com", "1000.00")

	rec := testutil.NewRecorder()
	h.ServeBalance(rec, testutil.NewAuthenticatedRequest("GET", "/balance", testutil.StudentWithID(u.ID)))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"balance":"1000.00"`)
}

func TestServeBalance_NoRow(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.ServeBalance(rec, testutil.NewAuthenticatedRequest("GET", "/balance", testutil.StudentUser()))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "user_not_found")
}

func TestHandleCredit(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateStudent(ctx, "s@example.com", "10.00")
	target := "/" + u.ID.Hex() + "/balance/credit"

	rec := testutil.NewRecorder()
	req := testutil.WithUser(testutil.NewJSONRequest(t, "POST", target, map[string]string{"amount": "5.25"}), testutil.AdminUser())
	creditRouter(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"balance":"15.25"`)

	events, err := audit.New(fixtures.DB()).Query(ctx, audit.QueryFilter{UserID: &u.ID, EventType: audit.EventBalanceCredited})
	if err != nil || len(events) != 1 {
		t.Errorf("expected one balance_credited event, got %d (%v)", len(events), err)
	}
}

func TestHandleCredit_Rejects(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateStudent(ctx, "s@example.com", "10.00")

	tests := []struct {
		name   string
		user   primitive.ObjectID
		amount string
		want   int
	}{
		{"zero", u.ID, "0", http.StatusBadRequest},
		{"negative", u.ID, "-5.00", http.StatusBadRequest},
		{"too precise", u.ID, "0.001", http.StatusBadRequest},
		{"beyond decimal128", u.ID, "12345678901234567890123456789012345.67", http.StatusBadRequest},
		{"unknown user", primitive.NewObjectID(), "1.00", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			req := testutil.NewJSONRequest(t, "POST", "/"+tt.user.Hex()+"/balance/credit", map[string]string{"amount": tt.amount})
			creditRouter(h).ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
			rec.AssertStatus(t, tt.want)
		})
	}

	rec := testutil.NewRecorder()
	h.ServeBalance(rec, testutil.NewAuthenticatedRequest("GET", "/balance", testutil.StudentWithID(u.ID)))
	rec.AssertContains(t, `"balance":"10.00"`)
}
