// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is set only when cache_backend is "redis".
	Redis *kvcache.Redis
}
