// internal/domain/models/subscription.go
package models

import (
	"time"

	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription is a user's paid enrollment in a course.
// At most one active document exists per (user_id, course_id).
// Subscriptions are never deleted, only deactivated.
type Subscription struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	UserID   primitive.ObjectID  `bson:"user_id" json:"user_id"`
	CourseID primitive.ObjectID  `bson:"course_id" json:"course_id"`
	GroupID  *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`

	// PaymentID identifies the pay request that created the subscription.
	PaymentID string       `bson:"payment_id" json:"payment_id"`
	Price     money.Amount `bson:"price" json:"price"`

	StartDate     time.Time  `bson:"start_date" json:"start_date"`
	EndDate       time.Time  `bson:"end_date" json:"end_date"`
	IsActive      bool       `bson:"is_active" json:"is_active"`
	DeactivatedAt *time.Time `bson:"deactivated_at,omitempty" json:"deactivated_at,omitempty"`
}
