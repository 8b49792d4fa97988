// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	assignfeature "github.com/dalemusser/assignhub/internal/app/features/assign"
	"github.com/dalemusser/assignhub/internal/app/features/assignapi"
	healthfeature "github.com/dalemusser/assignhub/internal/app/features/health"
	"github.com/dalemusser/assignhub/internal/app/store/audit"
	"github.com/dalemusser/assignhub/internal/app/store/productassign"
	userstore "github.com/dalemusser/assignhub/internal/app/store/users"
	"github.com/dalemusser/assignhub/internal/app/system/auth"
	"github.com/dalemusser/assignhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed.
//
// assignhub mounts:
//   - /health: MongoDB and cache checks for load balancers
//   - /metrics: Prometheus scrape endpoint
//   - /assign: the operator assignment board (session cookie auth, rate-limited sign-in)
//   - /api/v1: the assignment backend, user directory and audit history (bearer auth)
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc.boards == nil {
		return nil, errors.New("board registry not initialised; Startup must run first")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.cachePing, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.Handler())

	assignHandler := assignfeature.NewHandler(svc.boards, sessionMgr, logger)
	signInLimit := ratelimit.Middleware(svc.signInLimit, logger)
	r.Mount("/assign", assignfeature.Routes(assignHandler, sessionMgr, signInLimit))

	if appCfg.ServeAPI {
		apiHandler := assignapi.NewHandler(
			productassign.New(deps.MongoDatabase),
			userstore.New(deps.MongoDatabase),
			audit.New(deps.MongoDatabase),
			logger,
		)
		tokens := assignapi.NewTokenVerifier(appCfg.APITokenHash, logger)
		tokens.OnReject = apiHandler.RecordAuthFailure
		apiLimit := ratelimit.Middleware(svc.apiLimit, logger)
		r.Mount("/api/v1", apiLimit(assignapi.Routes(apiHandler, tokens)))
	}

	return r, nil
}
