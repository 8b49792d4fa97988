// internal/domain/models/productassignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductAssignment is the backend's record that a user is assigned to a
// product. (product_id, user_id) is unique.
type ProductAssignment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID string             `bson:"product_id" json:"product_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`

	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	CreatedByName string    `bson:"created_by_name,omitempty" json:"created_by_name,omitempty"`
}
