// internal/app/store/lessons/lessonstore.go
package lessonstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("lesson not found")
	// ErrInvalid is wrapped by every field validation failure.
	ErrInvalid    = errors.New("invalid lesson")
	errTitleEmpty = fmt.Errorf("%w: title is required", ErrInvalid)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("lessons")}
}

func (s *Store) Create(ctx context.Context, l models.Lesson) (models.Lesson, error) {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return models.Lesson{}, errTitleEmpty
	}
	now := time.Now().UTC()
	l.ID = primitive.NewObjectID()
	l.Link = strings.TrimSpace(l.Link)
	l.CreatedAt = now
	l.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, l); err != nil {
		return models.Lesson{}, err
	}
	return l, nil
}

// Get loads a lesson of a course. A lesson of another course is not found.
func (s *Store) Get(ctx context.Context, courseID, id primitive.ObjectID) (models.Lesson, error) {
	var l models.Lesson
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "course_id": courseID}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Lesson{}, ErrNotFound
		}
		return models.Lesson{}, err
	}
	return l, nil
}

// Update sets title and link. Empty values keep the stored ones.
func (s *Store) Update(ctx context.Context, courseID, id primitive.ObjectID, title, link string) (models.Lesson, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if t := strings.TrimSpace(title); t != "" {
		set["title"] = t
	}
	if l := strings.TrimSpace(link); l != "" {
		set["link"] = l
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var l models.Lesson
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "course_id": courseID}, bson.M{"$set": set}, opts).Decode(&l)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Lesson{}, ErrNotFound
		}
		return models.Lesson{}, err
	}
	return l, nil
}

// Delete removes a lesson. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, courseID, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "course_id": courseID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByCourse returns the lessons of a course in creation order.
func (s *Store) ListByCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.Lesson, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"course_id": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Lesson{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByCourses returns the lesson count of each listed course. Courses
// without lessons are absent from the map.
func (s *Store) CountByCourses(ctx context.Context, courseIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	out := make(map[primitive.ObjectID]int)
	if len(courseIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"course_id": bson.M{"$in": courseIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$course_id", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

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

// DeleteByCourse removes every lesson of a course.
func (s *Store) DeleteByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
