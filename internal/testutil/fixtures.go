package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// TestPassword is the password of every user created by CreateUser.
const TestPassword = "correct horse battery"

// CreateUser creates a user with the given role and a balance row holding
// balance.
func (f *Fixtures) CreateUser(ctx context.Context, first, email, role, balance string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		EmailCI:      text.Fold(email),
		FirstName:    first,
		LastName:     "Tester",
		PasswordHash: string(hash),
		Role:         role,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	b := models.Balance{
		ID:        primitive.NewObjectID(),
		UserID:    u.ID,
		Balance:   money.MustParse(balance),
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("balances").InsertOne(ctx, b); err != nil {
		f.t.Fatalf("failed to create test balance: %v", err)
	}
	return u
}

// CreateStudent creates a student holding balance.
func (f *Fixtures) CreateStudent(ctx context.Context, email, balance string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, "Student", email, models.RoleStudent, balance)
}

// CreateAdmin creates an admin with an empty balance.
func (f *Fixtures) CreateAdmin(ctx context.Context, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, "Admin", email, models.RoleAdmin, "0")
}

// CreateCourse creates a course.
func (f *Fixtures) CreateCourse(ctx context.Context, title, price string, available bool) models.Course {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Course{
		ID:          primitive.NewObjectID(),
		Title:       title,
		TitleCI:     text.Fold(title),
		Author:      "Test Author",
		Description: "Test course description",
		Price:       money.MustParse(price),
		IsAvailable: available,
		StartDate:   now.Add(7 * 24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("courses").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test course: %v", err)
	}
	return c
}

// CreateLesson creates a lesson in a course.
func (f *Fixtures) CreateLesson(ctx context.Context, courseID primitive.ObjectID, title string) models.Lesson {
	f.t.Helper()

	now := time.Now().UTC()
	l := models.Lesson{
		ID:        primitive.NewObjectID(),
		CourseID:  courseID,
		Title:     title,
		Link:      "https://example.com/lessons/" + title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("lessons").InsertOne(ctx, l); err != nil {
		f.t.Fatalf("failed to create test lesson: %v", err)
	}
	return l
}

// CreateSubscription inserts an active subscription, optionally placed in
// a group.
func (f *Fixtures) CreateSubscription(ctx context.Context, userID, courseID primitive.ObjectID, groupID *primitive.ObjectID, end time.Time) models.Subscription {
	f.t.Helper()

	s := models.Subscription{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		CourseID:  courseID,
		GroupID:   groupID,
		PaymentID: "fixture",
		Price:     money.Zero,
		StartDate: time.Now().UTC(),
		EndDate:   end,
		IsActive:  true,
	}
	if _, err := f.db.Collection("subscriptions").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test subscription: %v", err)
	}
	return s
}
