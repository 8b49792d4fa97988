// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/paging"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for assignhub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, assign_source, etc.
//   - Environment variables: ASSIGNHUB_MONGO_URI, ASSIGNHUB_ASSIGN_SOURCE, etc.
//   - Command-line flags: --mongo_uri, --assign_source, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "assignhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "", Desc: "Session signing key (required in production)"},
	{Name: "session_name", Default: "assignhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Assignment engine
	{Name: "assign_source", Default: SourceRemote, Desc: "Where boards load assignments: 'remote' or 'local'"},
	{Name: "assign_api_base_url", Default: "http://localhost:8080/api/v1", Desc: "Base URL of the assignment backend"},
	{Name: "page_size", Default: paging.PageSize, Desc: "Assignment rows per page"},
	{Name: "directory_limit", Default: paging.DirectoryLimit, Desc: "Candidates fetched for the assign modal"},

	// Persisted snapshot cache
	{Name: "cache_backend", Default: CacheMemory, Desc: "Snapshot cache: 'memory', 'redis', 'mongo' or 'none'"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address (cache_backend=redis)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "redis_key_prefix", Default: "assignhub:", Desc: "Prefix for Redis cache keys"},

	// Backend API
	{Name: "serve_api", Default: true, Desc: "Serve the assignment backend API under /api/v1"},
	{Name: "api_token_hash", Default: "", Desc: "bcrypt hash of the API bearer token (required in production)"},

	// Rate limits
	{Name: "signin_rate_limit", Default: 10, Desc: "Operator sign-in requests per minute per IP"},
	{Name: "api_rate_limit", Default: 600, Desc: "Backend API requests per minute per IP"},

	// Board lifecycle
	{Name: "board_idle_timeout", Default: "30m", Desc: "Idle time after which an operator board is flushed and dropped"},
	{Name: "board_cleanup_interval", Default: "5m", Desc: "How often idle boards are swept"},

	// Timeouts
	{Name: "timeout_ping", Default: "", Desc: "Health check timeout (e.g., 2s)"},
	{Name: "timeout_short", Default: "", Desc: "Cache and single-lookup timeout"},
	{Name: "timeout_medium", Default: "", Desc: "Backend call timeout"},
	{Name: "timeout_long", Default: "", Desc: "Startup work timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, ASSIGNHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ASSIGNHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		AssignSource:     appValues.String("assign_source"),
		AssignAPIBaseURL: appValues.String("assign_api_base_url"),
		PageSize:         appValues.Int("page_size"),
		DirectoryLimit:   appValues.Int("directory_limit"),

		CacheBackend:   appValues.String("cache_backend"),
		RedisAddr:      appValues.String("redis_addr"),
		RedisPassword:  appValues.String("redis_password"),
		RedisDB:        appValues.Int("redis_db"),
		RedisKeyPrefix: appValues.String("redis_key_prefix"),

		ServeAPI:     appValues.Bool("serve_api"),
		APITokenHash: appValues.String("api_token_hash"),

		SignInRateLimit: appValues.Int("signin_rate_limit"),
		APIRateLimit:    appValues.Int("api_rate_limit"),

		BoardIdleTimeout:     appValues.Duration("board_idle_timeout", 30*time.Minute),
		BoardCleanupInterval: appValues.Duration("board_cleanup_interval", 5*time.Minute),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI and backend base URL are checked here so configuration
// errors surface before any connection is attempted. Production requires
// a session key and, when the API is served, an API token hash.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env == "prod", appCfg)
}

func validateApp(prod bool, appCfg AppConfig) error {
	var errs []error

	switch appCfg.AssignSource {
	case SourceRemote, SourceLocal:
	default:
		errs = append(errs, fmt.Errorf("assign_source must be %q or %q, got %q", SourceRemote, SourceLocal, appCfg.AssignSource))
	}

	switch appCfg.CacheBackend {
	case CacheMemory, CacheMongo, CacheNone:
	case CacheRedis:
		if appCfg.RedisAddr == "" {
			errs = append(errs, errors.New("cache_backend=redis requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache_backend %q", appCfg.CacheBackend))
	}

	if appCfg.AssignSource == SourceLocal && appCfg.CacheBackend == CacheNone {
		errs = append(errs, errors.New("assign_source=local needs a cache_backend other than none"))
	}

	if u, err := url.Parse(appCfg.AssignAPIBaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("assign_api_base_url must be an absolute http(s) URL, got %q", appCfg.AssignAPIBaseURL))
	}

	if appCfg.PageSize < 1 {
		errs = append(errs, errors.New("page_size must be at least 1"))
	}
	if appCfg.DirectoryLimit < 1 {
		errs = append(errs, errors.New("directory_limit must be at least 1"))
	}
	if appCfg.SignInRateLimit < 1 || appCfg.APIRateLimit < 1 {
		errs = append(errs, errors.New("signin_rate_limit and api_rate_limit must be at least 1"))
	}
	if appCfg.BoardIdleTimeout <= 0 || appCfg.BoardCleanupInterval <= 0 {
		errs = append(errs, errors.New("board_idle_timeout and board_cleanup_interval must be positive"))
	}

	if prod {
		if appCfg.SessionKey == "" {
			errs = append(errs, errors.New("session_key is required in prod"))
		}
		if appCfg.ServeAPI && appCfg.APITokenHash == "" {
			errs = append(errs, errors.New("api_token_hash is required in prod when serve_api is enabled"))
		}
	}

	return errors.Join(errs...)
}
