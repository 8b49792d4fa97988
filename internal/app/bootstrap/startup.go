// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	assignfeature "github.com/dalemusser/assignhub/internal/app/features/assign"
	"github.com/dalemusser/assignhub/internal/app/system/ratelimit"
	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"github.com/dalemusser/assignhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It applies
// the configured timeouts, selects the snapshot cache, creates the board
// registry and rate limiters, and starts the idle-board sweeper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	cache, cachePing, err := newCache(appCfg, deps)
	if err != nil {
		return err
	}
	logger.Info("assignment engine configured",
		zap.String("assign_source", appCfg.AssignSource),
		zap.String("cache_backend", appCfg.CacheBackend),
		zap.String("assign_api_base_url", appCfg.AssignAPIBaseURL))

	boards := assignfeature.NewRegistry(newBoardFactory(appCfg, cache, logger), logger)
	cleanup := workers.NewBoardCleanup(boards, logger, appCfg.BoardCleanupInterval, appCfg.BoardIdleTimeout)
	cleanup.Start()

	svc = services{
		cachePing: cachePing,
		boards:    boards,
		cleanup:   cleanup,

		signInLimit: ratelimit.New(appCfg.SignInRateLimit, time.Minute),
		apiLimit:    ratelimit.New(appCfg.APIRateLimit, time.Minute),
	}
	return nil
}
