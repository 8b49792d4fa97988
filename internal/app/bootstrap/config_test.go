package bootstrap

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "assignhub",
		SessionName:          "assignhub-session",
		SessionMaxAge:        time.Hour,
		AssignSource:         SourceRemote,
		AssignAPIBaseURL:     "http://localhost:8080/api/v1",
		PageSize:             6,
		DirectoryLimit:       100,
		CacheBackend:         CacheMemory,
		RedisAddr:            "localhost:6379",
		ServeAPI:             true,
		SignInRateLimit:      10,
		APIRateLimit:         600,
		BoardIdleTimeout:     30 * time.Minute,
		BoardCleanupInterval: 5 * time.Minute,
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		prod    bool
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults ok in dev", mutate: func(*AppConfig) {}},
		{name: "local source with cache", mutate: func(c *AppConfig) { c.AssignSource = SourceLocal }},
		{name: "bad source", mutate: func(c *AppConfig) { c.AssignSource = "db" }, wantErr: "assign_source"},
		{name: "bad cache", mutate: func(c *AppConfig) { c.CacheBackend = "disk" }, wantErr: "cache_backend"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.CacheBackend = CacheRedis; c.RedisAddr = "" }, wantErr: "redis_addr"},
		{name: "local without cache", mutate: func(c *AppConfig) { c.AssignSource = SourceLocal; c.CacheBackend = CacheNone }, wantErr: "assign_source=local"},
		{name: "relative base url", mutate: func(c *AppConfig) { c.AssignAPIBaseURL = "/api/v1" }, wantErr: "assign_api_base_url"},
		{name: "zero page size", mutate: func(c *AppConfig) { c.PageSize = 0 }, wantErr: "page_size"},
		{name: "zero directory limit", mutate: func(c *AppConfig) { c.DirectoryLimit = 0 }, wantErr: "directory_limit"},
		{name: "zero rate limit", mutate: func(c *AppConfig) { c.APIRateLimit = 0 }, wantErr: "api_rate_limit"},
		{name: "prod needs session key", prod: true, mutate: func(c *AppConfig) { c.APITokenHash = "$2a$10$x" }, wantErr: "session_key"},
		{name: "prod needs api hash", prod: true, mutate: func(c *AppConfig) { c.SessionKey = "k" }, wantErr: "api_token_hash"},
		{name: "prod without api", prod: true, mutate: func(c *AppConfig) { c.SessionKey = "k"; c.ServeAPI = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateApp(tt.prod, cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
