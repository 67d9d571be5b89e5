package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteWait        = 10 * time.Second
	defaultPongWait         = 60 * time.Second
)

// WebsocketDialer dials the hub over gorilla/websocket.
type WebsocketDialer struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	// PongWait is how long the connection may stay silent before it is considered dead.
	// The hub pings more often than this.
	PongWait time.Duration
}

// Dial opens a websocket with a bearer token header.
func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	c, resp, err := dialer.DialContext(ctx, d.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", d.URL, err)
	}

	return newWSConn(c, d.WriteWait, d.PongWait), nil
}

type wsConn struct {
	c         *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
}

func newWSConn(c *websocket.Conn, writeWait, pongWait time.Duration) *wsConn {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	w := &wsConn{c: c, writeWait: writeWait, pongWait: pongWait}

	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPingHandler(func(appData string) error {
		_ = c.SetReadDeadline(time.Now().Add(pongWait))
		err := c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})
	return w
}

// ReadMessage returns the next data frame, skipping control frames.
func (w *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = w.c.SetReadDeadline(time.Now().Add(w.pongWait))
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteMessage(data []byte) error {
	if err := w.c.SetWriteDeadline(time.Now().Add(w.writeWait)); err != nil {
		return err
	}
	return w.c.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame (when the code is sendable) and closes the socket.
func (w *wsConn) Close(code int, reason string) error {
	if code != websocket.CloseAbnormalClosure {
		_ = w.c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(w.writeWait))
	}
	return w.c.Close()
}
