package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handler holds dependencies needed for health checks.
type Handler struct {
	Database Pinger
	Cache    Pinger // optional; nil when no networked cache is configured
	Log      *zap.Logger
}

// NewHandler constructs a health Handler from the Mongo client, an optional
// cache pinger and a logger.
func NewHandler(client *mongo.Client, cache Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		Database: PingFunc(func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }),
		Cache:    cache,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "cache":"connected" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// A cache failure is reported as "degraded" with 200: assignment state
// stays authoritative in memory without it.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.Database.Ping(ctx); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Cache != nil {
		resp.Cache = "connected"
		if err := h.Cache.Ping(ctx); err != nil {
			h.Log.Warn("health-check: cache ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Cache = "disconnected"
			resp.Error = err.Error()
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
