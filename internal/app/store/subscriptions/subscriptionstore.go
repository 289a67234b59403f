// internal/app/store/subscriptions/subscriptionstore.go
package subscriptionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrAlreadyEnrolled is returned by Enroll when the user already holds an
	// active subscription to the course.
	ErrAlreadyEnrolled = fmt.Errorf("active subscription exists: %w", enrollment.ErrAlreadyEnrolled)
	ErrNotFound        = errors.New("subscription not found")
	// ErrNotActive means AssignGroup targeted a missing or deactivated subscription.
	ErrNotActive = fmt.Errorf("subscription missing or inactive: %w", enrollment.ErrInvariantViolation)
	// ErrGroupMismatch means AssignGroup was given a group of another course.
	ErrGroupMismatch = fmt.Errorf("group belongs to another course: %w", enrollment.ErrInvariantViolation)
)

var _ enrollment.Registry = (*Store)(nil)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("subscriptions")}
}

// Enroll inserts sub as active and unplaced. The lookup runs first so the
// common duplicate case does not raise a write error (which would abort
// an enclosing transaction); the partial unique index on active
// (user_id, course_id) settles any race that slips past it.
func (s *Store) Enroll(ctx context.Context, sub models.Subscription) (models.Subscription, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"user_id":   sub.UserID,
		"course_id": sub.CourseID,
		"is_active": true,
	}, options.Count().SetLimit(1))
	if err != nil {
		return models.Subscription{}, err
	}
	if n > 0 {
		return models.Subscription{}, ErrAlreadyEnrolled
	}

	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	sub.IsActive = true
	sub.GroupID = nil
	sub.DeactivatedAt = nil
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Subscription{}, ErrAlreadyEnrolled
		}
		return models.Subscription{}, err
	}
	return sub, nil
}

// AssignGroup places an active subscription into g.
func (s *Store) AssignGroup(ctx context.Context, subID primitive.ObjectID, g models.Group) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": subID, "course_id": g.CourseID, "is_active": true},
		bson.M{"$set": bson.M{"group_id": g.ID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	sub, err := s.GetByID(ctx, subID)
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotActive
	case err != nil:
		return err
	case sub.CourseID != g.CourseID:
		return ErrGroupMismatch
	}
	return ErrNotActive
}

// Deactivate marks a subscription inactive. Deactivating an inactive
// subscription is a no-op.
func (s *Store) Deactivate(ctx context.Context, subID primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": subID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "deactivated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, subID); err != nil {
		return err
	}
	return nil
}

// CountActiveByGroup returns the number of active placed subscriptions per
// group of a course.
func (s *Store) CountActiveByGroup(ctx context.Context, courseID primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"course_id": courseID,
			"is_active": true,
			"group_id":  bson.M{"$exists": true, "$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$group_id", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[primitive.ObjectID]int)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int                `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Subscription, error) {
	var sub models.Subscription
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Subscription{}, ErrNotFound
		}
		return models.Subscription{}, err
	}
	return sub, nil
}

// ListByUser returns a user's subscriptions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, activeOnly bool) ([]models.Subscription, error) {
	filter := bson.M{"user_id": userID}
	if activeOnly {
		filter["is_active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Subscription
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveCourseIDs returns the courses a user is actively subscribed to.
func (s *Store) ActiveCourseIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "course_id", bson.M{"user_id": userID, "is_active": true})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ListExpired returns up to limit active subscriptions whose end date is
// at or before now.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int64) ([]models.Subscription, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "end_date", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{
		"is_active": true,
		"end_date":  bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Subscription
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveByCourse returns the number of active subscriptions of a course.
func (s *Store) CountActiveByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"course_id": courseID, "is_active": true})
}
