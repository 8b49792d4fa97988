// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/assignhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the board sweeper, writes every open board's snapshot,
// and tears down the Redis and MongoDB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc.cleanup != nil {
		svc.cleanup.Stop()
	}
	for _, l := range []*ratelimit.Limiter{svc.signInLimit, svc.apiLimit} {
		if l != nil {
			l.Stop()
		}
	}
	if svc.boards != nil {
		if err := svc.boards.FlushAll(ctx); err != nil {
			logger.Warn("flushing boards on shutdown", zap.Error(err))
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
