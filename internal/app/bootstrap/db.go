// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"github.com/dalemusser/assignhub/internal/app/system/indexes"
	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the MongoDB client and, when the snapshot cache lives in
// Redis, the Redis connection. Both are verified with a ping.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping MongoDB: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.CacheBackend == CacheRedis {
		rdb, err := kvcache.NewRedis(pingCtx, kvcache.RedisConfig{
			Addr:      appCfg.RedisAddr,
			Password:  appCfg.RedisPassword,
			DB:        appCfg.RedisDB,
			KeyPrefix: appCfg.RedisKeyPrefix,
		}, logger)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, err
		}
		deps.Redis = rdb
	}

	return deps, nil
}

// EnsureSchema creates the indexes the stores rely on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "ensure indexes")
	defer cancel()
	return indexes.EnsureAll(ctx, deps.MongoDatabase, logger)
}
