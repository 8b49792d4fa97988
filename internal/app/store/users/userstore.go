package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/normalize"
	"github.com/dalemusser/assignhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// MaxListLimit caps the page size of List.
const MaxListLimit = 500

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errNameRequired   = errors.New("name is required")
	errEmailRequired  = errors.New("email is required")
	errBadStatus      = errors.New(`status must be "active"|"disabled"`)
)

// IsValidation reports whether err came from Create's field checks.
func IsValidation(err error) bool {
	return errors.Is(err, errNameRequired) || errors.Is(err, errEmailRequired) || errors.Is(err, errBadStatus)
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads the users with the given IDs, keyed by ID. Missing IDs are
// absent from the map.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// List returns one 1-based page of active users ordered by folded name,
// then _id for a stable order among equal names.
func (s *Store) List(ctx context.Context, page, limit int) ([]models.User, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.c.Find(ctx, bson.M{"status": bson.M{"$ne": StatusDisabled}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.User, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u, err := prepare(u)
	if err != nil {
		return models.User{}, err
	}

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// prepare normalizes u and fills its ID, folded name and timestamps.
func prepare(u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Status = normalize.Status(u.Status)
	if u.Status == "" {
		u.Status = StatusActive
	}

	if u.FullName == "" {
		return models.User{}, errNameRequired
	}
	if u.Email == "" {
		return models.User{}, errEmailRequired
	}
	if u.Status != StatusActive && u.Status != StatusDisabled {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}
