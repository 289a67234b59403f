package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/coursehub/internal/app/system/paging"
	"github.com/dalemusser/coursehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// User statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// MinPasswordLength is the shortest password Create accepts.
const MinPasswordLength = 8

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrNotFound       = errors.New("user not found")
	// ErrInvalid is wrapped by every field validation failure of Create.
	ErrInvalid        = errors.New("invalid user")
	errBadRole        = fmt.Errorf(`%w: role must be "student"|"admin"`, ErrInvalid)
	errBadEmail       = fmt.Errorf("%w: email is required", ErrInvalid)
	errShortPassword  = fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(strings.TrimSpace(email))}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// Create inserts a new user after normalizing & validating fields and
// hashing password. The balance row is created separately by the caller,
// in the same transaction.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = strings.TrimSpace(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	if u.Status == "" {
		u.Status = StatusActive
	}

	if u.EmailCI == "" {
		return models.User{}, errBadEmail
	}
	switch u.Role {
	case models.RoleStudent, models.RoleAdmin:
	default:
		return models.User{}, errBadRole
	}
	if len(password) < MinPasswordLength {
		return models.User{}, errShortPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = string(hash)

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u models.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetStatus enables or disables a user.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if status != StatusActive && status != StatusDisabled {
		return errors.New(`status must be "active"|"disabled"`)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one keyset page of users ordered by email. An empty role
// lists every role.
func (s *Store) List(ctx context.Context, role string, cfg paging.KeysetConfig) ([]models.User, paging.Result, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	if window := cfg.KeysetWindow("email_ci"); window != nil {
		filter = bson.M{"$and": []bson.M{filter, window}}
	}

	find := options.Find().SetProjection(bson.M{"password_hash": 0})
	cfg.ApplyToFind(find, "email_ci")

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, paging.Result{}, err
	}
	defer cur.Close(ctx)

	var rows []models.User
	if err := cur.All(ctx, &rows); err != nil {
		return nil, paging.Result{}, err
	}
	res := paging.TrimPage(cfg, &rows)
	return rows, res, nil
}
