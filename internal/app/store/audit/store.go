// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAssignment = "assignment"
	CategoryDirectory  = "directory"
	CategorySecurity   = "security"
)

// Event types
const (
	EventProductAssigned       = "product_assigned"
	EventProductAssignRejected = "product_assign_rejected"
	EventUserCreated           = "user_created"
	EventAPIAuthFailed         = "api_auth_failed"
)

// DefaultLimit caps Query when the filter sets no limit.
const DefaultLimit = 100

// Event is one recorded backend action.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"eventType"`

	ProductID string              `bson:"product_id,omitempty" json:"productId,omitempty"`
	UserID    *primitive.ObjectID `bson:"user_id,omitempty" json:"userId,omitempty"`

	IP        string `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"userAgent,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter narrows Query. Zero fields match everything.
type QueryFilter struct {
	ProductID string
	UserID    *primitive.ObjectID
	Category  string
	EventType string
	Since     *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event, filling ID and Timestamp when unset.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, filter.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of matching events.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.bson())
}

// ByProduct returns the most recent events for productID.
func (s *Store) ByProduct(ctx context.Context, productID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{ProductID: productID, Limit: limit})
}

func (f QueryFilter) bson() bson.M {
	q := bson.M{}
	if f.ProductID != "" {
		q["product_id"] = f.ProductID
	}
	if f.UserID != nil {
		q["user_id"] = *f.UserID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.Since != nil {
		q["timestamp"] = bson.M{"$gte": *f.Since}
	}
	return q
}
