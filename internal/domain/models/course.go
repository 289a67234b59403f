// internal/domain/models/course.go
package models

import (
	"time"

	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course is a catalog entry. The enrollment workflow only reads it.
type Course struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Author      string             `bson:"author" json:"author"`
	Description string             `bson:"description" json:"description"`
	Price       money.Amount       `bson:"price" json:"price"`
	IsAvailable bool               `bson:"is_available" json:"is_available"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`

	// PlacementVersion is bumped inside every payment transaction so that
	// concurrent placements for one course conflict and run one at a time.
	PlacementVersion int64 `bson:"placement_version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
