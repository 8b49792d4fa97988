// internal/app/store/productassign/productassignstore.go
package productassign

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/assignhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlreadyAssigned is returned when (product_id, user_id) already exists.
var ErrAlreadyAssigned = errors.New("product already assigned")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("product_assignments")}
}

// Assign inserts a new product-user assignment.
// If CreatedAt is zero, it will be set to now (UTC).
func (s *Store) Assign(ctx context.Context, a models.ProductAssignment) (models.ProductAssignment, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ProductAssignment{}, ErrAlreadyAssigned
		}
		return models.ProductAssignment{}, err
	}
	return a, nil
}

// ListByProduct returns a product's assignments in the order they were made.
func (s *Store) ListByProduct(ctx context.Context, productID string) ([]models.ProductAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ProductAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Exists reports whether userID is assigned to productID.
func (s *Store) Exists(ctx context.Context, productID string, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"product_id": productID, "user_id": userID}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}
