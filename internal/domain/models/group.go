// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a capacity-capped roster bucket inside a course.
//
// NOTE:
//   - Members are not embedded on Group. A user is in a group when an
//     active subscription references it, so the member count is always
//     derived from the subscriptions collection.
//   - Number is the 1-based creation sequence within the course and is
//     unique per course. It is the tie-break when two groups are equally
//     loaded.
type Group struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	CourseID  primitive.ObjectID `bson:"course_id" json:"course_id"`
	Number    int                `bson:"number" json:"number"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
