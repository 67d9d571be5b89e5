package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHub отвечает user id и закрывает соединение
type echoHub struct {
	userID atomic.Int64
}

func (h *echoHub) Serve(ctx context.Context, conn *websocket.Conn, userID int64) {
	h.userID.Store(userID)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected"}`))
	_ = conn.Close()
}

func withUser(userID int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func TestRealtimeHandler_Connect(t *testing.T) {
	hub := &echoHub{}
	handler := NewRealtimeHandler(setupTestLogger(), hub, nil)

	srv := httptest.NewServer(withUser(7, http.HandlerFunc(handler.Connect)))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(data))
	assert.Equal(t, int64(7), hub.userID.Load())
}

func TestRealtimeHandler_Connect_Unauthenticated(t *testing.T) {
	handler := NewRealtimeHandler(setupTestLogger(), &echoHub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	w := httptest.NewRecorder()
	handler.Connect(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRealtimeHandler_Connect_NotWebsocket(t *testing.T) {
	hub := &echoHub{}
	handler := NewRealtimeHandler(setupTestLogger(), hub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	req = req.WithContext(WithUserID(req.Context(), 7))
	w := httptest.NewRecorder()
	handler.Connect(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), hub.userID.Load())
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "same host", origin: "http://example.com", want: true},
		{name: "foreign host", origin: "http://evil.com", want: false},
		{name: "explicitly allowed", allowed: []string{"http://app.local"}, origin: "http://app.local", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://evil.com", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
