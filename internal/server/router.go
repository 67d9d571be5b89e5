// Package server wires the hub HTTP surface.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/packsync/internal/server/handlers"
	"github.com/iudanet/packsync/internal/server/middleware"
)

// RouterDeps зависимости HTTP-слоя
type RouterDeps struct {
	Logger   *slog.Logger
	Storage  handlers.SnapshotStorage
	DB       handlers.Pinger
	Hub      handlers.RealtimeServer
	Tokens   middleware.TokenValidator
	Gatherer prometheus.Gatherer
	// ConnectLimiter ограничивает попытки открыть websocket, nil выключает лимит
	ConnectLimiter *middleware.RateLimiter
	AllowedOrigins []string
}

// NewRouter builds the routes:
//
//	GET /api/v1/health
//	GET /metrics
//	GET /api/v1/ws                      (bearer JWT)
//	GET /api/v1/lists/{listID}/entities (bearer JWT)
func NewRouter(d RouterDeps) http.Handler {
	health := handlers.NewHealthHandler(d.Logger, d.DB)
	realtime := handlers.NewRealtimeHandler(d.Logger, d.Hub, d.AllowedOrigins)
	lists := handlers.NewListsHandler(d.Logger, d.Storage)

	r := mux.NewRouter()
	r.Use(
		middleware.RecoveryMiddleware(d.Logger),
		middleware.LoggingWithSkip(d.Logger, []string{"/api/v1/health", "/metrics"}),
	)

	r.HandleFunc("/api/v1/health", health.Health).Methods(http.MethodGet)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(d.Logger, d.Tokens))

	var connect http.Handler = http.HandlerFunc(realtime.Connect)
	if d.ConnectLimiter != nil {
		connect = middleware.RateLimitMiddleware(d.ConnectLimiter)(connect)
	}
	api.Handle("/ws", connect).Methods(http.MethodGet)
	api.HandleFunc("/lists/{listID}/entities", lists.Snapshot).Methods(http.MethodGet)

	return r
}
