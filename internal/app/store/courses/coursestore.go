// internal/app/store/courses/coursestore.go
package coursestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/app/system/paging"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = fmt.Errorf("course not found: %w", enrollment.ErrCourseNotFound)
	// ErrInvalid is wrapped by every field validation failure.
	ErrInvalid    = errors.New("invalid course")
	errTitleEmpty = fmt.Errorf("%w: title is required", ErrInvalid)
)

var _ enrollment.Catalog = (*Store)(nil)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("courses")}
}

// Create inserts a new course.
func (s *Store) Create(ctx context.Context, c models.Course) (models.Course, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return models.Course{}, errTitleEmpty
	}
	if err := c.Price.Validate(); err != nil {
		return models.Course{}, fmt.Errorf("%w: price: %w", ErrInvalid, err)
	}
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.TitleCI = text.Fold(c.Title)
	c.PlacementVersion = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Course{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Course, error) {
	var c models.Course
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Course{}, ErrNotFound
		}
		return models.Course{}, err
	}
	return c, nil
}

// Claim loads a course and bumps its placement_version. Inside a
// transaction the write makes every other transaction that claims the same
// course conflict, so placements into one course are serialised.
func (s *Store) Claim(ctx context.Context, id primitive.ObjectID) (models.Course, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Course
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"placement_version": 1}},
		opts,
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Course{}, ErrNotFound
		}
		return models.Course{}, err
	}
	return c, nil
}

// Update holds the editable fields of a course. Nil fields are left as is.
type Update struct {
	Title       *string
	Author      *string
	Description *string
	Price       *money.Amount
	IsAvailable *bool
	StartDate   *time.Time
}

// Update applies u and returns the stored course.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) (models.Course, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return models.Course{}, errTitleEmpty
		}
		set["title"] = title
		set["title_ci"] = text.Fold(title)
	}
	if u.Author != nil {
		set["author"] = strings.TrimSpace(*u.Author)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Price != nil {
		if err := u.Price.Validate(); err != nil {
			return models.Course{}, fmt.Errorf("%w: price: %w", ErrInvalid, err)
		}
		set["price"] = *u.Price
	}
	if u.IsAvailable != nil {
		set["is_available"] = *u.IsAvailable
	}
	if u.StartDate != nil {
		set["start_date"] = u.StartDate.UTC()
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Course
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Course{}, ErrNotFound
		}
		return models.Course{}, err
	}
	return c, nil
}

// Delete removes a course. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter narrows List.
type ListFilter struct {
	AvailableOnly bool
	Exclude       []primitive.ObjectID
}

// List returns one keyset page of courses ordered by title.
func (s *Store) List(ctx context.Context, f ListFilter, cfg paging.KeysetConfig) ([]models.Course, paging.Result, error) {
	filter := bson.M{}
	if f.AvailableOnly {
		filter["is_available"] = true
	}
	if len(f.Exclude) > 0 {
		filter["_id"] = bson.M{"$nin": f.Exclude}
	}
	if window := cfg.KeysetWindow("title_ci"); window != nil {
		filter = bson.M{"$and": []bson.M{filter, window}}
	}

	find := options.Find()
	cfg.ApplyToFind(find, "title_ci")

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, paging.Result{}, err
	}
	defer cur.Close(ctx)

	var rows []models.Course
	if err := cur.All(ctx, &rows); err != nil {
		return nil, paging.Result{}, err
	}
	res := paging.TrimPage(cfg, &rows)
	return rows, res, nil
}
