package kvcache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Cache stored in the kv_cache collection, one document per key.
type Mongo struct {
	c *mongo.Collection
}

// NewMongo creates a Mongo-backed cache.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{c: db.Collection("kv_cache")}
}

type kvDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m *Mongo) Get(ctx context.Context, key string) (string, bool, error) {
	var d kvDoc
	err := m.c.FindOne(ctx, bson.M{"_id": key}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d.Value, true, nil
}

// Set upserts the value so it works whether the key exists or not.
func (m *Mongo) Set(ctx context.Context, key, value string) error {
	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now().UTC(),
		},
	}
	_, err := m.c.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}
