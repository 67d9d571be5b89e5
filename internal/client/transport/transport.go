// Package transport keeps one logical realtime connection to the hub:
// it joins list rooms, survives drops with exponential backoff and
// buffers outbound frames while the socket is down.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/pkg/api"
)

// State состояние соединения
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CloseAbnormal is used when the connection ended without a close frame.
const CloseAbnormal = websocket.CloseAbnormalClosure

// Conn is a live message-oriented connection.
// ReadMessage returns *websocket.CloseError when the peer sent a close frame.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens connections to the hub.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Handler receives decoded inbound frames.
type Handler func(env api.Envelope)

// Options tunes reconnect behaviour.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DialTimeout    time.Duration
}

// DefaultOptions returns the production reconnect settings.
func DefaultOptions() Options {
	return Options{
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		DialTimeout:    10 * time.Second,
	}
}

// maxBackoffExponent caps the doubling at initial*32.
const maxBackoffExponent = 5

// Backoff returns the reconnect delay for the given attempt:
// min(max, initial * 2^min(attempt, 5)).
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffExponent {
		attempt = maxBackoffExponent
	}
	d := initial << attempt
	if d > max {
		return max
	}
	return d
}

type subscription struct {
	h Handler
}

// Transport is the client side of the realtime protocol.
type Transport struct {
	dialer    Dialer
	scheduler clock.Scheduler
	logger    *slog.Logger
	opts      Options

	conn       Conn
	reconnect  clock.Timer
	cancelDial context.CancelFunc
	lists      []int64
	denied     map[int64]bool
	acked      map[int64]bool // списки, подтвержденные joined на текущем соединении
	queue      [][]byte
	userID     int64
	gen        uint64
	attempt    int
	state      State
	mu         sync.Mutex

	handlers map[api.MessageType][]*subscription
	hmu      sync.RWMutex
}

// New creates a disconnected transport.
func New(dialer Dialer, scheduler clock.Scheduler, logger *slog.Logger, opts Options) *Transport {
	defaults := DefaultOptions()
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaults.DialTimeout
	}

	return &Transport{
		dialer:    dialer,
		scheduler: scheduler,
		logger:    logger,
		opts:      opts,
		denied:    make(map[int64]bool),
		acked:     make(map[int64]bool),
		handlers:  make(map[api.MessageType][]*subscription),
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Lists returns the associated list ids in association order.
func (t *Transport) Lists() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.lists...)
}

// QueueLen returns the number of buffered outbound frames.
func (t *Transport) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// IsJoined reports whether frames for listID can be delivered right now:
// the connection is open and the hub acknowledged the join with joined.
func (t *Transport) IsJoined(listID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateOpen && t.associatedLocked(listID) && t.acked[listID]
}

// Denied reports whether the hub refused the join for listID.
func (t *Transport) Denied(listID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.denied[listID]
}

func (t *Transport) associatedLocked(listID int64) bool {
	for _, id := range t.lists {
		if id == listID {
			return true
		}
	}
	return false
}

// Connect associates listID with this connection and dials when needed.
func (t *Transport) Connect(listID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	isNew := !t.associatedLocked(listID)
	if isNew {
		t.lists = append(t.lists, listID)
	}
	t.userID = userID

	switch t.state {
	case StateDisconnected:
		t.dialLocked()
	case StateOpen:
		if isNew {
			t.writeControlLocked(t.joinFrame(listID))
		}
	}
}

// Leave drops the association with listID and tells the hub.
func (t *Transport) Leave(listID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, id := range t.lists {
		if id == listID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	t.lists = append(t.lists[:idx], t.lists[idx+1:]...)
	delete(t.denied, listID)
	delete(t.acked, listID)

	if t.state == StateOpen {
		data, _ := json.Marshal(api.LeaveMessage{Type: api.MessageTypeLeave, PackingListID: listID})
		t.writeControlLocked(data)
	}
}

// Disconnect closes the connection, cancels any pending reconnect and forgets identity.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.stopTimersLocked()

	if t.conn != nil {
		t.state = StateClosing
		if err := t.conn.Close(websocket.CloseNormalClosure, "client disconnect"); err != nil {
			t.logger.Debug("Close failed", "error", err)
		}
		t.conn = nil
	}

	t.state = StateDisconnected
	t.lists = nil
	t.denied = make(map[int64]bool)
	t.acked = make(map[int64]bool)
	t.userID = 0
	t.attempt = 0
}

// NetworkOnline reconnects immediately if there is something to join.
func (t *Transport) NetworkOnline() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateDisconnected && len(t.lists) > 0 {
		t.logger.Info("Network online, reconnecting")
		t.dialLocked()
	}
}

// NetworkOffline only records the event; the socket reports its own failure.
func (t *Transport) NetworkOffline() {
	t.logger.Info("Network offline")
}

// Send transmits msg when open and reports true; otherwise buffers it and reports false.
func (t *Transport) Send(msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error("Failed to marshal outbound message", "error", err)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeLocked(data)
}

// writeLocked пишет кадр или ставит его в очередь
func (t *Transport) writeLocked(data []byte) bool {
	if t.state != StateOpen || t.conn == nil {
		t.queue = append(t.queue, data)
		return false
	}
	if !t.writeConnLocked(data) {
		t.queue = append(t.queue, data)
		return false
	}
	return true
}

// writeControlLocked пишет join/leave. При ошибке кадр не попадает в очередь:
// после переподключения onDial сам отправит join для каждого списка.
func (t *Transport) writeControlLocked(data []byte) bool {
	if t.state != StateOpen || t.conn == nil {
		return false
	}
	return t.writeConnLocked(data)
}

func (t *Transport) writeConnLocked(data []byte) bool {
	if err := t.conn.WriteMessage(data); err != nil {
		t.logger.Warn("Write failed, closing connection", "error", err)
		_ = t.conn.Close(websocket.CloseAbnormalClosure, "write failed")
		t.closedLocked(CloseAbnormal)
		return false
	}
	return true
}

// Subscribe registers h for messages of type typ (api.MessageTypeAll for every message).
// The returned func removes exactly this registration.
func (t *Transport) Subscribe(typ api.MessageType, h Handler) func() {
	sub := &subscription{h: h}

	t.hmu.Lock()
	t.handlers[typ] = append(t.handlers[typ], sub)
	t.hmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.hmu.Lock()
			defer t.hmu.Unlock()

			subs := t.handlers[typ]
			for i, s := range subs {
				if s == sub {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(t.handlers, typ)
			} else {
				t.handlers[typ] = subs
			}
		})
	}
}

func (t *Transport) handlerCount(typ api.MessageType) int {
	t.hmu.RLock()
	defer t.hmu.RUnlock()
	return len(t.handlers[typ])
}

func (t *Transport) joinFrame(listID int64) []byte {
	data, _ := json.Marshal(api.NewJoinMessage(listID, t.userID))
	return data
}

func (t *Transport) stopTimersLocked() {
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
}

func (t *Transport) dialLocked() {
	t.stopTimersLocked()
	t.gen++
	gen := t.gen
	t.state = StateConnecting

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.DialTimeout)
	t.cancelDial = cancel

	go func() {
		defer cancel()
		conn, err := t.dialer.Dial(ctx)
		t.onDial(gen, conn, err)
	}()
}

func (t *Transport) onDial(gen uint64, conn Conn, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		// Устаревшая попытка: Disconnect или новый dial уже случились
		if conn != nil {
			_ = conn.Close(websocket.CloseNormalClosure, "stale connection")
		}
		return
	}
	t.cancelDial = nil

	if err != nil {
		t.logger.Warn("Dial failed", "error", err, "attempt", t.attempt)
		t.closedLocked(CloseAbnormal)
		return
	}

	t.conn = conn
	t.state = StateOpen
	t.attempt = 0
	t.acked = make(map[int64]bool)
	t.logger.Info("Realtime connection open", "lists", len(t.lists))

	go t.readLoop(gen, conn)

	for _, listID := range t.lists {
		if !t.writeControlLocked(t.joinFrame(listID)) {
			return
		}
	}

	queued := t.queue
	t.queue = nil
	for i, data := range queued {
		if !t.writeLocked(data) {
			// Не отправленный кадр уже в очереди, остальные идут следом
			t.queue = append(t.queue, queued[i+1:]...)
			return
		}
	}
}

func (t *Transport) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			code := CloseAbnormal
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			t.onClosed(gen, code, err)
			return
		}
		t.dispatch(data)
	}
}

func (t *Transport) onClosed(gen uint64, code int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return
	}
	t.logger.Info("Realtime connection closed", "code", code, "error", err)
	t.closedLocked(code)
}

// closedLocked переводит в disconnected и при необходимости планирует переподключение
func (t *Transport) closedLocked(code int) {
	t.gen++
	t.conn = nil
	t.state = StateDisconnected

	if code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway || len(t.lists) == 0 {
		return
	}

	delay := Backoff(t.attempt, t.opts.InitialBackoff, t.opts.MaxBackoff)
	t.attempt++
	gen := t.gen

	t.logger.Info("Scheduling reconnect", "delay", delay, "attempt", t.attempt)
	t.reconnect = t.scheduler.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if gen != t.gen || t.state != StateDisconnected || len(t.lists) == 0 {
			return
		}
		t.reconnect = nil
		t.dialLocked()
	})
}

func (t *Transport) dispatch(data []byte) {
	env, err := api.DecodeInbound(data)
	if err != nil {
		t.logger.Warn("Dropping malformed frame", "error", err)
		return
	}

	switch env.Type {
	case api.MessageTypeJoined:
		var msg api.JoinedMessage
		if err := env.Decode(&msg); err == nil {
			t.mu.Lock()
			delete(t.denied, msg.PackingListID)
			t.acked[msg.PackingListID] = true
			t.mu.Unlock()
		}
	case api.MessageTypeError:
		var msg api.ErrorMessage
		if err := env.Decode(&msg); err == nil && msg.PackingListID != 0 {
			// После joined ошибки относятся к отдельным update, а не к доступу
			t.mu.Lock()
			if !t.acked[msg.PackingListID] {
				t.logger.Warn("Hub refused list", "list_id", msg.PackingListID, "message", msg.Message)
				t.denied[msg.PackingListID] = true
			}
			t.mu.Unlock()
		}
	}

	t.hmu.RLock()
	subs := append([]*subscription(nil), t.handlers[env.Type]...)
	if env.Type != api.MessageTypeAll {
		subs = append(subs, t.handlers[api.MessageTypeAll]...)
	}
	t.hmu.RUnlock()

	for _, s := range subs {
		s.h(env)
	}
}
