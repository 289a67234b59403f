package indexes_test

import (
	"testing"

	"github.com/dalemusser/coursehub/internal/app/system/indexes"
	"github.com/dalemusser/coursehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bson.M {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]bson.M)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			out[name] = idx
		}
	}
	return out
}

func TestEnsureAll_Idempotent(t *testing.T) {
	// SetupTestDB already ran EnsureAll once.
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesInvariantIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)

	tests := []struct {
		coll string
		name string
	}{
		{"users", "uniq_users_email_ci"},
		{"balances", "uniq_balances_user"},
		{"groups", "uniq_groups_course_number"},
		{"subscriptions", "uniq_subscriptions_active_user_course"},
		{"subscriptions", "idx_subscriptions_course_active_group"},
		{"subscriptions", "idx_subscriptions_active_end"},
		{"courses", "idx_courses_available_titleci_id"},
		{"lessons", "idx_lessons_course_created_id"},
		{"audit_events", "idx_audit_timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.coll+"/"+tt.name, func(t *testing.T) {
			names := indexNames(t, db, tt.coll)
			if _, ok := names[tt.name]; !ok {
				t.Errorf("index %s missing on %s (have %v)", tt.name, tt.coll, names)
			}
		})
	}

	sub := indexNames(t, db, "subscriptions")["uniq_subscriptions_active_user_course"]
	if sub["partialFilterExpression"] == nil {
		t.Error("active subscription index must be partial")
	}
}

func TestActiveSubscriptionIndex_AllowsInactiveDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("subscriptions")
	uid, cid := primitive.NewObjectID(), primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		if _, err := coll.InsertOne(ctx, bson.M{"user_id": uid, "course_id": cid, "is_active": false}); err != nil {
			t.Fatalf("inactive insert %d failed: %v", i, err)
		}
	}
	if _, err := coll.InsertOne(ctx, bson.M{"user_id": uid, "course_id": cid, "is_active": true}); err != nil {
		t.Fatalf("first active insert failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"user_id": uid, "course_id": cid, "is_active": true}); !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("second active insert: expected duplicate key error, got %v", err)
	}
}
