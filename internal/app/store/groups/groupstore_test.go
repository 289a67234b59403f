package groupstore_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	groupstore "github.com/dalemusser/coursehub/internal/app/store/groups"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Group{CourseID: courseID, Number: 1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Name != "Group 1" {
		t.Errorf("Name = %q, want %q", created.Name, "Group 1")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Number != 1 || got.CourseID != courseID {
		t.Errorf("GetByID = %+v", got)
	}
}

func TestStore_CreateDuplicateNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.Group{CourseID: courseID, Number: 3}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.Create(ctx, models.Group{CourseID: courseID, Number: 3})
	if !errors.Is(err, groupstore.ErrDuplicateGroupNumber) {
		t.Fatalf("duplicate error = %v, want ErrDuplicateGroupNumber", err)
	}
	if !errors.Is(err, enrollment.ErrInvariantViolation) {
		t.Error("duplicate number should be an invariant violation")
	}

	// Same number in another course is fine.
	if _, err := store.Create(ctx, models.Group{CourseID: primitive.NewObjectID(), Number: 3}); err != nil {
		t.Errorf("Create in other course failed: %v", err)
	}
}

func TestStore_CreateRejectsBadNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Group{CourseID: primitive.NewObjectID()}); err == nil {
		t.Error("expected error for number 0")
	}
}

func TestStore_ListByCourseOrdered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	for _, n := range []int{3, 1, 2} {
		if _, err := store.Create(ctx, models.Group{CourseID: courseID, Number: n}); err != nil {
			t.Fatalf("Create %d failed: %v", n, err)
		}
	}
	if _, err := store.Create(ctx, models.Group{CourseID: primitive.NewObjectID(), Number: 1}); err != nil {
		t.Fatalf("Create other course failed: %v", err)
	}

	groups, err := store.ListByCourse(ctx, courseID)
	if err != nil {
		t.Fatalf("ListByCourse failed: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("len = %d, want 3", len(groups))
	}
	for i, g := range groups {
		if g.Number != i+1 {
			t.Errorf("groups[%d].Number = %d, want %d", i, g.Number, i+1)
		}
	}

	n, err := store.CountByCourse(ctx, courseID)
	if err != nil {
		t.Fatalf("CountByCourse failed: %v", err)
	}
	if n != 3 {
		t.Errorf("CountByCourse = %d, want 3", n)
	}
}

func TestStore_NextNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	next, err := store.NextNumber(ctx, courseID)
	if err != nil {
		t.Fatalf("NextNumber failed: %v", err)
	}
	if next != 1 {
		t.Errorf("empty course next = %d, want 1", next)
	}

	for _, n := range []int{1, 4} {
		if _, err := store.Create(ctx, models.Group{CourseID: courseID, Number: n}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	next, _ = store.NextNumber(ctx, courseID)
	if next != 5 {
		t.Errorf("next = %d, want 5", next)
	}
}

func TestStore_GetByIDNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, groupstore.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteByCourse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	courseID := primitive.NewObjectID()
	for n := 1; n <= 2; n++ {
		if _, err := store.Create(ctx, models.Group{CourseID: courseID, Number: n}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	deleted, err := store.DeleteByCourse(ctx, courseID)
	if err != nil {
		t.Fatalf("DeleteByCourse failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}
