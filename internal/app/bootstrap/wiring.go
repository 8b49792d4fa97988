// internal/app/bootstrap/wiring.go
package bootstrap

import (
	"fmt"

	assignfeature "github.com/dalemusser/assignhub/internal/app/features/assign"
	"github.com/dalemusser/assignhub/internal/app/features/health"
	assignmentstore "github.com/dalemusser/assignhub/internal/app/store/assignments"
	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"github.com/dalemusser/assignhub/internal/app/system/assignboard"
	"github.com/dalemusser/assignhub/internal/app/system/assignclient"
	"github.com/dalemusser/assignhub/internal/app/system/ratelimit"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/app/system/workers"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// services holds what Startup builds and BuildHandler and Shutdown use.
type services struct {
	cachePing health.Pinger
	boards    *assignfeature.Registry
	cleanup   *workers.BoardCleanup

	signInLimit *ratelimit.Limiter
	apiLimit    *ratelimit.Limiter
}

var svc services

// newCache returns the snapshot cache for appCfg.CacheBackend and the pinger
// the health check uses for it (nil when there is nothing remote to ping).
func newCache(appCfg AppConfig, deps DBDeps) (kvcache.Cache, health.Pinger, error) {
	switch appCfg.CacheBackend {
	case CacheMemory:
		return kvcache.NewMemory(), nil, nil
	case CacheMongo:
		return kvcache.NewMongo(deps.MongoDatabase), nil, nil
	case CacheRedis:
		if deps.Redis == nil {
			return nil, nil, fmt.Errorf("cache_backend=redis but redis is not connected")
		}
		return deps.Redis, deps.Redis, nil
	case CacheNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache_backend %q", appCfg.CacheBackend)
	}
}

// newBoardFactory builds operator boards. Each board gets its own backend
// client authorised by the session's token source, and loads its store from
// the backend or the cache depending on assign_source.
func newBoardFactory(appCfg AppConfig, cache kvcache.Cache, logger *zap.Logger) assignfeature.BoardFactory {
	return func(ts oauth2.TokenSource) (*assignboard.Board, error) {
		client, err := assignclient.New(appCfg.AssignAPIBaseURL, ts, nil, logger)
		if err != nil {
			return nil, err
		}

		// Stores opened by the same board share load fetches.
		loads := new(singleflight.Group)
		newStore := func() *assignmentstore.Store {
			opts := assignmentstore.Options{Cache: cache, Loads: loads, Logger: logger}
			if appCfg.AssignSource == SourceRemote {
				opts.Remote = client
			}
			return assignmentstore.New(opts)
		}

		rec := reconcile.New(client, newStore, logger)
		return assignboard.New(rec, client, assignboard.Options{
			PageSize:       appCfg.PageSize,
			DirectoryLimit: appCfg.DirectoryLimit,
			Logger:         logger,
		}), nil
	}
}
