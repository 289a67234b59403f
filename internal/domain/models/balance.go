// internal/domain/models/balance.go
package models

import (
	"time"

	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Balance is a user's spendable bonus units. One document per user_id.
// The amount is never negative and is only changed by debit/credit.
type Balance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Balance   money.Amount       `bson:"balance" json:"balance"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
