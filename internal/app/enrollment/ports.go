// internal/app/enrollment/ports.go
package enrollment

import (
	"context"

	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ledger holds each user's spendable balance.
//
// Debit is an atomic conditional decrement: it fails with an error
// matching ErrInsufficientFunds and leaves the balance unchanged when the
// balance is below amount. A missing balance row matches ErrUserNotFound.
type Ledger interface {
	Balance(ctx context.Context, userID primitive.ObjectID) (money.Amount, error)
	Debit(ctx context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error)
	Credit(ctx context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error)
}

// Registry holds subscriptions.
//
// Enroll creates sub as an active, unplaced subscription unless an active
// one already exists for (sub.UserID, sub.CourseID), in which case it
// returns an error matching ErrAlreadyEnrolled and writes nothing. The
// check and the insert are atomic with respect to other Enroll calls.
type Registry interface {
	Enroll(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	// AssignGroup sets the group of an active subscription. It refuses a
	// group from another course.
	AssignGroup(ctx context.Context, subID primitive.ObjectID, g models.Group) error
	Deactivate(ctx context.Context, subID primitive.ObjectID) error
	// CountActiveByGroup returns the active member count per group of a
	// course. Groups without members are absent from the map.
	CountActiveByGroup(ctx context.Context, courseID primitive.ObjectID) (map[primitive.ObjectID]int, error)
}

// GroupPool stores a course's groups.
type GroupPool interface {
	// ListByCourse returns the course's groups ordered by Number.
	ListByCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.Group, error)
	// Create inserts g. A Number already used in the course is an
	// ErrInvariantViolation.
	Create(ctx context.Context, g models.Group) (models.Group, error)
}

// Catalog loads the course being paid for. Claim also marks the course as
// being placed into by the current transaction, so that two transactions
// placing into the same course conflict instead of interleaving.
// A missing course matches ErrCourseNotFound.
type Catalog interface {
	Claim(ctx context.Context, courseID primitive.ObjectID) (models.Course, error)
}

// TxRunner runs fn as one all-or-nothing unit. fn may be invoked more than
// once when the backend retries a conflicting transaction.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Auditor receives the durable record of payment outcomes. It is called
// after the transaction has finished.
type Auditor interface {
	PaymentCompleted(ctx context.Context, res Result, price money.Amount)
	PaymentRejected(ctx context.Context, userID, courseID primitive.ObjectID, paymentID, reason string)
	GroupCreated(ctx context.Context, g models.Group, reason string)
}
