package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType тип realtime-сообщения. Набор закрытый: все, что не распознано,
// превращается в MessageTypeUnknown.
type MessageType string

const (
	// MessageTypeUnknown - fallback для незнакомых типов
	MessageTypeUnknown MessageType = "unknown"
	// MessageTypeAll - ключ подписки на все входящие сообщения
	MessageTypeAll MessageType = "all"

	// Client -> Server
	MessageTypeJoin  MessageType = "join"
	MessageTypeLeave MessageType = "leave"

	// Both directions
	MessageTypeUpdate MessageType = "update"

	// Server -> Client
	MessageTypeConnected MessageType = "connected"
	MessageTypeJoined    MessageType = "joined"
	MessageTypeLeft      MessageType = "left"
	MessageTypeError     MessageType = "error"

	MessageTypeListUpdated MessageType = "list_updated"
	MessageTypeListDeleted MessageType = "list_deleted"

	MessageTypeCategoryCreated MessageType = "category_created"
	MessageTypeCategoryUpdated MessageType = "category_updated"
	MessageTypeCategoryDeleted MessageType = "category_deleted"

	MessageTypeBagCreated MessageType = "bag_created"
	MessageTypeBagUpdated MessageType = "bag_updated"
	MessageTypeBagDeleted MessageType = "bag_deleted"

	MessageTypeTravelerCreated MessageType = "traveler_created"
	MessageTypeTravelerUpdated MessageType = "traveler_updated"
	MessageTypeTravelerDeleted MessageType = "traveler_deleted"

	MessageTypeItemCreated MessageType = "item_created"
	MessageTypeItemUpdated MessageType = "item_updated"
	MessageTypeItemDeleted MessageType = "item_deleted"
)

// EntityBroadcastTypes lists every "<entity>_<verb>" message type.
var EntityBroadcastTypes = []MessageType{
	MessageTypeListUpdated, MessageTypeListDeleted,
	MessageTypeCategoryCreated, MessageTypeCategoryUpdated, MessageTypeCategoryDeleted,
	MessageTypeBagCreated, MessageTypeBagUpdated, MessageTypeBagDeleted,
	MessageTypeTravelerCreated, MessageTypeTravelerUpdated, MessageTypeTravelerDeleted,
	MessageTypeItemCreated, MessageTypeItemUpdated, MessageTypeItemDeleted,
}

var knownMessageTypes = func() map[MessageType]struct{} {
	m := map[MessageType]struct{}{
		MessageTypeJoin:      {},
		MessageTypeLeave:     {},
		MessageTypeUpdate:    {},
		MessageTypeConnected: {},
		MessageTypeJoined:    {},
		MessageTypeLeft:      {},
		MessageTypeError:     {},
	}
	for _, t := range EntityBroadcastTypes {
		m[t] = struct{}{}
	}
	return m
}()

// ParseMessageType maps a wire tag onto the closed set.
func ParseMessageType(s string) MessageType {
	t := MessageType(s)
	if _, ok := knownMessageTypes[t]; ok {
		return t
	}
	return MessageTypeUnknown
}

// IsEntityBroadcast reports whether t is one of the "<entity>_<verb>" types.
func (t MessageType) IsEntityBroadcast() bool {
	_, _, ok := splitBroadcastType(t)
	return ok
}

// ErrMalformedMessage возвращается, если кадр не является JSON-объектом с полем type
var ErrMalformedMessage = errors.New("malformed realtime message")

// Envelope входящий кадр с уже определенным типом
type Envelope struct {
	Type    MessageType
	RawType string
	Raw     json.RawMessage
}

// DecodeInbound parses one frame. Unknown tags decode fine as MessageTypeUnknown;
// frames that are not JSON objects with a string "type" return ErrMalformedMessage.
func DecodeInbound(data []byte) (Envelope, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if head.Type == nil {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return Envelope{
		Type:    ParseMessageType(*head.Type),
		RawType: *head.Type,
		Raw:     raw,
	}, nil
}

// Decode unmarshals the full frame into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("failed to decode %s message: %w", e.RawType, err)
	}
	return nil
}

// JoinMessage client -> server: подписка на комнату списка
type JoinMessage struct {
	Type          MessageType `json:"type"`
	PackingListID int64       `json:"packingListId"`
	UserID        int64       `json:"userId"`
}

// NewJoinMessage builds a join frame.
func NewJoinMessage(listID, userID int64) JoinMessage {
	return JoinMessage{Type: MessageTypeJoin, PackingListID: listID, UserID: userID}
}

// LeaveMessage client -> server: выход из комнаты
type LeaveMessage struct {
	Type          MessageType `json:"type"`
	PackingListID int64       `json:"packingListId"`
}

// UpdateMessage мутация. От клиента приходят Operation/Entity/EntityID/Changes/Timestamp,
// сервер дополняет Version, UpdatedBy и Data (итоговое состояние сущности).
type UpdateMessage struct {
	EntityID      *int64          `json:"entityId,omitempty"`
	Type          MessageType     `json:"type"`
	Operation     string          `json:"operation"`
	Entity        string          `json:"entity"`
	OperationID   string          `json:"operationId,omitempty"`
	Changes       json.RawMessage `json:"changes"`
	Data          json.RawMessage `json:"data,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	PackingListID int64           `json:"packingListId,omitempty"`
	Version       int64           `json:"version,omitempty"`
	UpdatedBy     int64           `json:"updatedBy,omitempty"`
}

// ConnectedMessage server -> client, сразу после открытия сокета
type ConnectedMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp int64       `json:"timestamp"`
}

// JoinedMessage server -> client, подтверждение join
type JoinedMessage struct {
	Type          MessageType `json:"type"`
	PackingListID int64       `json:"packingListId"`
	UserID        int64       `json:"userId"`
	Timestamp     int64       `json:"timestamp"`
}

// LeftMessage server -> client, подтверждение leave
type LeftMessage struct {
	Type          MessageType `json:"type"`
	PackingListID int64       `json:"packingListId"`
	Timestamp     int64       `json:"timestamp"`
}

// ErrorMessage server -> client. PackingListID заполняется, если ошибка относится к списку
type ErrorMessage struct {
	Type          MessageType `json:"type"`
	Message       string      `json:"message"`
	PackingListID int64       `json:"packingListId,omitempty"`
}

// EntityBroadcast нормализованный вид сообщений "<entity>_<verb>"
type EntityBroadcast struct {
	Entity        string
	Operation     string
	Data          json.RawMessage
	EntityID      int64
	PackingListID int64
	Version       int64
	UpdatedBy     int64
}

// EntityBroadcast normalizes an "<entity>_<verb>" frame such as
// {"type":"item_updated","itemId":42,"item":{...},"updatedBy":3}.
func (e Envelope) EntityBroadcast() (*EntityBroadcast, error) {
	entity, operation, ok := splitBroadcastType(e.Type)
	if !ok {
		return nil, fmt.Errorf("%s is not an entity broadcast", e.RawType)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode broadcast: %w", err)
	}

	b := &EntityBroadcast{Entity: entity, Operation: operation}

	if raw, ok := fields[entity+"Id"]; ok {
		if err := json.Unmarshal(raw, &b.EntityID); err != nil {
			return nil, fmt.Errorf("invalid %sId: %w", entity, err)
		}
	}
	if raw, ok := fields[entity]; ok && string(raw) != "null" {
		b.Data = raw
	}
	readInt(fields, "updatedBy", &b.UpdatedBy)
	readInt(fields, "version", &b.Version)
	readInt(fields, "packingListId", &b.PackingListID)

	// Недостающие поля берем из самого объекта сущности
	if len(b.Data) > 0 {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(b.Data, &inner); err == nil {
			if b.EntityID == 0 {
				readInt(inner, "id", &b.EntityID)
			}
			if b.Version == 0 {
				readInt(inner, "version", &b.Version)
			}
			if b.PackingListID == 0 {
				readInt(inner, "packingListId", &b.PackingListID)
			}
		}
	}

	if b.EntityID == 0 {
		return nil, fmt.Errorf("%w: %s without %sId", ErrMalformedMessage, e.RawType, entity)
	}
	return b, nil
}

func readInt(fields map[string]json.RawMessage, key string, dst *int64) {
	if raw, ok := fields[key]; ok {
		var v int64
		if err := json.Unmarshal(raw, &v); err == nil {
			*dst = v
		}
	}
}

func splitBroadcastType(t MessageType) (entity, operation string, ok bool) {
	if _, known := knownMessageTypes[t]; !known {
		return "", "", false
	}
	name, verb, found := strings.Cut(string(t), "_")
	if !found {
		return "", "", false
	}
	switch verb {
	case "created":
		return name, "create", true
	case "updated":
		return name, "update", true
	case "deleted":
		return name, "delete", true
	}
	return "", "", false
}
