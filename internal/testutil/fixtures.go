package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an active directory user.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   name,
		FullNameCI: text.Fold(name),
		Email:      email,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAssignment inserts a product assignment for userID.
func (f *Fixtures) CreateAssignment(ctx context.Context, productID string, userID primitive.ObjectID) models.ProductAssignment {
	f.t.Helper()

	a := models.ProductAssignment{
		ID:        primitive.NewObjectID(),
		ProductID: productID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("product_assignments").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test assignment: %v", err)
	}
	return a
}
