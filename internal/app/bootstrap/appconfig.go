// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Assignment source modes.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Persisted cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
	CacheNone   = "none"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration. WAFFLE's CoreConfig handles
// ports, TLS, logging level, CORS and request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Operator session configuration
	SessionKey    string        // Secret key for signing session cookies (required in prod)
	SessionName   string        // Cookie name for sessions (default: assignhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Assignment engine
	AssignSource     string // "remote" loads from the backend, "local" restores from the cache
	AssignAPIBaseURL string // Base URL of the assignment backend (e.g., http://localhost:8080/api/v1)
	PageSize         int    // Rows per page on the assignment board
	DirectoryLimit   int    // Candidates fetched for the assign modal

	// Persisted snapshot cache
	CacheBackend   string // "memory", "redis", "mongo" or "none"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Backend API served under /api/v1
	ServeAPI     bool   // Mount the backend API in this process
	APITokenHash string // bcrypt hash of the API bearer token

	// Rate limits, requests per minute per client IP
	SignInRateLimit int
	APIRateLimit    int

	// Board lifecycle
	BoardIdleTimeout     time.Duration // Boards untouched this long are flushed and dropped
	BoardCleanupInterval time.Duration

	// I/O timeouts (zero keeps the defaults)
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
