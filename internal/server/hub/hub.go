// Package hub fans out confirmed list mutations to every connection joined to the list.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/internal/server/storage"
	"github.com/iudanet/packsync/pkg/api"
)

//go:generate moq -out authorizer_mock.go . Authorizer

// Authorizer checks list membership.
type Authorizer interface {
	CanAccessList(ctx context.Context, listID, userID int64) (bool, error)
}

//go:generate moq -out persister_mock.go . Persister

// Persister applies mutations authoritatively.
type Persister interface {
	ApplyMutation(ctx context.Context, m *storage.Mutation) (*storage.MutationResult, error)
}

// Broadcaster sends a message to every connection of a room.
type Broadcaster interface {
	Broadcast(listID int64, msg any) int
}

// Options tunes connection pumps.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultOptions returns the production pump settings.
func DefaultOptions() Options {
	return Options{
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 << 10,
	}
}

// Hub держит комнаты списков в памяти процесса
type Hub struct {
	auth      Authorizer
	persister Persister
	metrics   *Metrics
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	rooms   map[int64]map[*client]struct{}
	clients map[*client]struct{}
	mu      sync.RWMutex
}

var _ Broadcaster = (*Hub)(nil)

// New creates a hub.
func New(auth Authorizer, persister Persister, metrics *Metrics, logger *slog.Logger, opts Options) *Hub {
	defaults := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaults.WriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaults.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}

	return &Hub{
		auth:      auth,
		persister: persister,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		rooms:     make(map[int64]map[*client]struct{}),
		clients:   make(map[*client]struct{}),
	}
}

// Serve runs an upgraded connection of an authenticated user until it closes.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID int64) {
	c := newClient(h, conn, userID)
	logger := h.logger.With("conn_id", c.id, "user_id", userID)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Connections.Inc()
	logger.Info("Realtime connection opened")

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.writePump()
	}()
	go func() {
		select {
		case <-ctx.Done():
			c.close(websocket.CloseGoingAway)
		case <-c.done:
		}
	}()

	c.send(api.ConnectedMessage{
		Type:      api.MessageTypeConnected,
		Message:   "connected",
		Timestamp: h.now().UnixMilli(),
	})

	c.readPump(ctx, logger)

	h.unregister(c)
	c.close(websocket.CloseNormalClosure)
	writer.Wait()

	h.metrics.Connections.Dec()
	logger.Info("Realtime connection closed")
}

// Close asks every connection to reconnect later.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close(websocket.CloseServiceRestart)
	}
}

// Broadcast queues msg to every connection joined to listID and returns the number of recipients.
func (h *Hub) Broadcast(listID int64, msg any) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", "list_id", listID, "error", err)
		return 0
	}

	h.mu.RLock()
	recipients := make([]*client, 0, len(h.rooms[listID]))
	for c := range h.rooms[listID] {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range recipients {
		if c.enqueue(data) {
			delivered++
		}
	}

	h.metrics.Broadcasts.Inc()
	h.metrics.Deliveries.Add(float64(delivered))
	return delivered
}

// RoomSize returns the number of connections joined to listID.
func (h *Hub) RoomSize(listID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[listID])
}

// Rooms returns the number of non-empty rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) join(c *client, listID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[listID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[listID] = room
	}
	room[c] = struct{}{}
	c.rooms[listID] = struct{}{}
	h.metrics.Rooms.Set(float64(len(h.rooms)))
}

func (h *Hub) leave(c *client, listID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, listID)
	h.metrics.Rooms.Set(float64(len(h.rooms)))
}

func (h *Hub) leaveLocked(c *client, listID int64) {
	delete(c.rooms, listID)
	room, ok := h.rooms[listID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, listID)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for listID := range c.rooms {
		h.leaveLocked(c, listID)
	}
	delete(h.clients, c)
	h.metrics.Rooms.Set(float64(len(h.rooms)))
}

// roomOf возвращает комнату для update: явный packingListId или единственная комната
func (h *Hub) roomOf(c *client, listID int64) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if listID != 0 {
		_, ok := c.rooms[listID]
		return listID, ok
	}
	if len(c.rooms) != 1 {
		return 0, false
	}
	for id := range c.rooms {
		return id, true
	}
	return 0, false
}

func (h *Hub) handle(ctx context.Context, c *client, logger *slog.Logger, data []byte) {
	env, err := api.DecodeInbound(data)
	if err != nil {
		logger.Warn("Malformed realtime message", "error", err)
		h.metrics.Messages.WithLabelValues(string(api.MessageTypeUnknown)).Inc()
		c.sendError("malformed message", 0)
		return
	}
	h.metrics.Messages.WithLabelValues(string(env.Type)).Inc()

	switch env.Type {
	case api.MessageTypeJoin:
		var msg api.JoinMessage
		if err := env.Decode(&msg); err != nil {
			c.sendError("malformed join", 0)
			return
		}
		h.handleJoin(ctx, c, logger, &msg)

	case api.MessageTypeLeave:
		var msg api.LeaveMessage
		if err := env.Decode(&msg); err != nil {
			c.sendError("malformed leave", 0)
			return
		}
		h.leave(c, msg.PackingListID)
		c.send(api.LeftMessage{Type: api.MessageTypeLeft, PackingListID: msg.PackingListID, Timestamp: h.now().UnixMilli()})

	case api.MessageTypeUpdate:
		var msg api.UpdateMessage
		if err := env.Decode(&msg); err != nil {
			c.sendError("malformed update", 0)
			return
		}
		h.handleUpdate(ctx, c, logger, &msg)

	default:
		logger.Debug("Unsupported message type", "type", env.RawType)
		c.sendError("unsupported message type: "+env.RawType, 0)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *client, logger *slog.Logger, msg *api.JoinMessage) {
	if msg.PackingListID <= 0 {
		c.sendError("packingListId is required", 0)
		return
	}
	if msg.UserID != c.userID {
		h.metrics.JoinDenials.Inc()
		logger.Warn("Join with foreign user id", "list_id", msg.PackingListID, "claimed_user_id", msg.UserID)
		c.sendError("user mismatch", msg.PackingListID)
		return
	}

	ok, err := h.auth.CanAccessList(ctx, msg.PackingListID, c.userID)
	if err != nil {
		logger.Error("Failed to check list access", "list_id", msg.PackingListID, "error", err)
		c.sendError("internal error", msg.PackingListID)
		return
	}
	if !ok {
		h.metrics.JoinDenials.Inc()
		logger.Info("Join denied", "list_id", msg.PackingListID)
		c.sendError("access denied", msg.PackingListID)
		return
	}

	h.join(c, msg.PackingListID)
	logger.Debug("Joined list", "list_id", msg.PackingListID)
	c.send(api.JoinedMessage{
		Type:          api.MessageTypeJoined,
		PackingListID: msg.PackingListID,
		UserID:        c.userID,
		Timestamp:     h.now().UnixMilli(),
	})
}

func (h *Hub) handleUpdate(ctx context.Context, c *client, logger *slog.Logger, msg *api.UpdateMessage) {
	listID, ok := h.roomOf(c, msg.PackingListID)
	if !ok {
		if msg.PackingListID == 0 {
			c.sendError("packingListId is required", 0)
		} else {
			c.sendError("not joined", msg.PackingListID)
		}
		return
	}

	kind, err := models.ParseOperationKind(msg.Operation)
	if err != nil {
		c.sendError(err.Error(), listID)
		return
	}
	entityType, err := models.ParseEntityType(msg.Entity)
	if err != nil {
		c.sendError(err.Error(), listID)
		return
	}

	result, err := h.persister.ApplyMutation(ctx, &storage.Mutation{
		EntityID:    msg.EntityID,
		OperationID: msg.OperationID,
		Kind:        kind,
		EntityType:  entityType,
		Changes:     msg.Changes,
		ListID:      listID,
		UserID:      c.userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEntityNotFound):
			c.sendError("entity not found", listID)
		case errors.Is(err, storage.ErrInvalidMutation), errors.Is(err, storage.ErrListNotFound):
			c.sendError(err.Error(), listID)
		default:
			logger.Error("Failed to apply update", "list_id", listID, "operation_id", msg.OperationID, "error", err)
			c.sendError("failed to apply update", listID)
		}
		return
	}

	confirmed := confirmation(msg, result.Entity, kind)
	if result.Duplicate {
		// Повтор: подтверждаем только отправителю
		logger.Debug("Duplicate operation", "operation_id", msg.OperationID)
		c.send(confirmed)
		return
	}

	n := h.Broadcast(listID, confirmed)
	logger.Debug("Update broadcast",
		"list_id", listID,
		"entity", entityType,
		"entity_id", result.Entity.ID,
		"version", result.Entity.Version,
		"recipients", n)
}

func confirmation(msg *api.UpdateMessage, e *models.ServerEntity, kind models.OperationKind) *api.UpdateMessage {
	id := e.ID
	changes := msg.Changes
	if len(changes) == 0 {
		changes = json.RawMessage(`{}`)
	}
	out := &api.UpdateMessage{
		Type:          api.MessageTypeUpdate,
		Operation:     string(kind),
		Entity:        string(e.EntityType),
		EntityID:      &id,
		OperationID:   msg.OperationID,
		Changes:       changes,
		Timestamp:     msg.Timestamp,
		PackingListID: e.ListID,
		Version:       e.Version,
		UpdatedBy:     e.UpdatedBy,
	}
	if kind != models.OperationDelete {
		out.Data = e.Data
	}
	return out
}

// client одно websocket-соединение
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	rooms  map[int64]struct{} // guarded by hub.mu
	id     string
	userID int64

	closeOnce sync.Once
	closeCode int
}

func newClient(h *Hub, conn *websocket.Conn, userID int64) *client {
	return &client{
		hub:    h,
		conn:   conn,
		out:    make(chan []byte, h.opts.SendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[int64]struct{}),
		id:     uuid.NewString(),
		userID: userID,
	}
}

// close останавливает writePump; код уходит клиенту в close-кадре
func (c *client) close(code int) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		close(c.done)
	})
}

func (c *client) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal message", "conn_id", c.id, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *client) sendError(message string, listID int64) {
	c.send(api.ErrorMessage{Type: api.MessageTypeError, Message: message, PackingListID: listID})
}

// enqueue never blocks: a full buffer drops the connection.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		c.hub.metrics.Dropped.Inc()
		c.hub.logger.Warn("Dropping slow connection", "conn_id", c.id, "user_id", c.userID)
		c.close(websocket.CloseTryAgainLater)
		return false
	}
}

func (c *client) readPump(ctx context.Context, logger *slog.Logger) {
	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Connection read ended", "error", err)
			}
			return
		}
		c.hub.handle(ctx, c, logger, data)
	}
}

func (c *client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close(websocket.CloseAbnormalClosure)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				c.close(websocket.CloseAbnormalClosure)
				return
			}

		case <-c.done:
			c.flush(opts.WriteWait)
			if c.closeCode != websocket.CloseAbnormalClosure {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.closeCode, ""),
					time.Now().Add(opts.WriteWait))
			}
			return
		}
	}
}

// flush дописывает уже поставленные в очередь кадры перед закрытием
func (c *client) flush(wait time.Duration) {
	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
