// internal/app/store/groups/groupstore.go
package groupstore

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

type Store struct {
	c *mongo.Collection
}

var (
	// ErrDuplicateGroupNumber means another writer created the same number
	// in the course first. Placement holds the course lock, so inside a
	// payment it is reported as an invariant violation, not retried.
	ErrDuplicateGroupNumber = fmt.Errorf("a group with this number already exists in the course: %w", enrollment.ErrInvariantViolation)
	ErrNotFound             = errors.New("group not found")
	errBadNumber            = errors.New("group number must be positive")
)

var _ enrollment.GroupPool = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts g. The caller picks the number; the unique
// (course_id, number) index rejects a reused one.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	if g.Number < 1 {
		return models.Group{}, errBadNumber
	}
	g.ID = primitive.NewObjectID()
	if g.Name == "" {
		g.Name = enrollment.GroupName(g.Number)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupNumber
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListByCourse returns the groups of a course ordered by number.
func (s *Store) ListByCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"course_id": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NextNumber returns one past the highest number used in the course.
func (s *Store) NextNumber(ctx context.Context, courseID primitive.ObjectID) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "number", Value: -1}}).
		SetProjection(bson.M{"number": 1})
	var g models.Group
	err := s.c.FindOne(ctx, bson.M{"course_id": courseID}, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return g.Number + 1, nil
}

// CountByCourse returns the number of groups in a course.
func (s *Store) CountByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"course_id": courseID})
}

// DeleteByCourse removes every group of a course. Used when a course is
// deleted. Returns the number of documents deleted.
func (s *Store) DeleteByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
