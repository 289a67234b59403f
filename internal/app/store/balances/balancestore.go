// internal/app/store/balances/balancestore.go
package balancestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound means the user has no balance row, which only happens for
	// a user that does not exist.
	ErrNotFound = fmt.Errorf("balance not found: %w", enrollment.ErrUserNotFound)
	// ErrInsufficientFunds is returned by Debit when the balance is below the amount.
	ErrInsufficientFunds = fmt.Errorf("balance too low: %w", enrollment.ErrInsufficientFunds)
	// ErrNegativeBalance means a stored balance is below zero after a write.
	ErrNegativeBalance = fmt.Errorf("balance would become negative: %w", enrollment.ErrInvariantViolation)
	// ErrExists is returned by Open when the user already has a balance row.
	ErrExists = errors.New("balance already exists for this user")
)

var _ enrollment.Ledger = (*Store)(nil)

// Store is the balance ledger. The only writes are Open, Debit and Credit;
// there is no way to set a balance to an arbitrary value.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("balances")}
}

// Open creates the balance row of a new user.
func (s *Store) Open(ctx context.Context, userID primitive.ObjectID, initial money.Amount) (models.Balance, error) {
	if err := initial.Validate(); err != nil {
		return models.Balance{}, err
	}
	b := models.Balance{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Balance:   initial,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Balance{}, ErrExists
		}
		return models.Balance{}, err
	}
	return b, nil
}

// Get loads the balance row of a user.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID) (models.Balance, error) {
	var b models.Balance
	if err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Balance{}, ErrNotFound
		}
		return models.Balance{}, err
	}
	return b, nil
}

// Balance returns the current amount.
func (s *Store) Balance(ctx context.Context, userID primitive.ObjectID) (money.Amount, error) {
	b, err := s.Get(ctx, userID)
	if err != nil {
		return money.Zero, err
	}
	return b.Balance, nil
}

// Debit subtracts amount in one conditional update: the filter only
// matches while balance >= amount, so concurrent debits cannot overdraw.
func (s *Store) Debit(ctx context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error) {
	if err := amount.Validate(); err != nil {
		return money.Zero, err
	}

	filter := bson.M{
		"user_id": userID,
		"balance": bson.M{"$gte": amount},
	}
	b, err := s.apply(ctx, filter, amount.Neg())
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either no row or not enough money; tell them apart.
		if _, gerr := s.Get(ctx, userID); gerr != nil {
			return money.Zero, gerr
		}
		return money.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return money.Zero, err
	}
	if b.Balance.IsNegative() {
		return b.Balance, ErrNegativeBalance
	}
	return b.Balance, nil
}

// Credit adds amount.
func (s *Store) Credit(ctx context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error) {
	if err := amount.Validate(); err != nil {
		return money.Zero, err
	}
	b, err := s.apply(ctx, bson.M{"user_id": userID}, amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return money.Zero, ErrNotFound
	}
	if err != nil {
		return money.Zero, err
	}
	return b.Balance, nil
}

func (s *Store) apply(ctx context.Context, filter bson.M, delta money.Amount) (models.Balance, error) {
	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b models.Balance
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b)
	return b, err
}
