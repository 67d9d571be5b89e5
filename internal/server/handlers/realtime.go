package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
)

// RealtimeServer обслуживает websocket-соединение аутентифицированного пользователя
type RealtimeServer interface {
	Serve(ctx context.Context, conn *websocket.Conn, userID int64)
}

// RealtimeHandler upgrades GET /api/v1/ws and hands the connection to the hub.
type RealtimeHandler struct {
	logger   *slog.Logger
	hub      RealtimeServer
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates the websocket handler. allowedOrigins may contain "*".
func NewRealtimeHandler(logger *slog.Logger, hub RealtimeServer, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		logger: logger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Connect обрабатывает GET /api/v1/ws
func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		sendError(w, h.logger, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}

	h.hub.Serve(r.Context(), conn, userID)
}

// originChecker пропускает запросы без Origin (CLI), same-host и явно разрешенные
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
