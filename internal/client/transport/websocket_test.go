package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/pkg/api"
)

func TestWebsocketDialer_RoundTrip(t *testing.T) {
	authHeader := make(chan string, 1)
	joins := make(chan api.JoinMessage, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")

		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join api.JoinMessage
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joins <- join

		_ = conn.WriteJSON(api.JoinedMessage{Type: api.MessageTypeJoined, PackingListID: join.PackingListID, UserID: join.UserID})

		// Ждем закрытия со стороны клиента
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dialer := &WebsocketDialer{
		URL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token: "secret-token",
	}
	tr := New(dialer, clock.Real{}, setupTestLogger(), DefaultOptions())
	defer tr.Disconnect()

	joined := make(chan api.JoinedMessage, 1)
	tr.Subscribe(api.MessageTypeJoined, func(env api.Envelope) {
		var msg api.JoinedMessage
		if err := json.Unmarshal(env.Raw, &msg); err == nil {
			joined <- msg
		}
	})

	tr.Connect(11, 4)

	assert.Equal(t, "Bearer secret-token", <-authHeader)

	join := <-joins
	assert.Equal(t, api.MessageTypeJoin, join.Type)
	assert.Equal(t, int64(11), join.PackingListID)
	assert.Equal(t, int64(4), join.UserID)

	msg := <-joined
	assert.Equal(t, int64(11), msg.PackingListID)
	require.Eventually(t, func() bool { return tr.IsJoined(11) }, waitFor, tick)
}

func TestWebsocketDialer_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	dialer := &WebsocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	_, err := dialer.Dial(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
