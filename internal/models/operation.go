package models

import (
	"encoding/json"
	"fmt"
)

// OperationKind вид мутации
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Valid reports whether k is create, update or delete.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// ParseOperationKind converts a wire name into an OperationKind.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return k, nil
}

// PendingOperation локально сохраненная мутация, еще не доставленная на сервер.
// Synced меняется только false -> true.
type PendingOperation struct {
	EntityID   *int64          `json:"entityId,omitempty"` // EntityID опционален для create
	Kind       OperationKind   `json:"operation"`          // Kind create|update|delete
	EntityType EntityType      `json:"entity"`             // EntityType тип целевой сущности
	Payload    json.RawMessage `json:"payload"`            // Payload непрозрачный JSON
	ID         int64           `json:"id"`                 // ID локальный auto-increment
	ListID     int64           `json:"packingListId"`      // ListID список-владелец
	Timestamp  int64           `json:"timestamp"`          // Timestamp unix ms, строго возрастает
	SyncedAt   int64           `json:"syncedAt,omitempty"` // SyncedAt unix ms момента отметки
	Synced     bool            `json:"synced"`             // Synced доставлена ли операция
}

// Clone создает глубокую копию операции
func (op *PendingOperation) Clone() *PendingOperation {
	c := *op
	c.Payload = cloneRaw(op.Payload)
	if op.EntityID != nil {
		id := *op.EntityID
		c.EntityID = &id
	}
	return &c
}

// Int64Ptr is a helper for optional entity ids.
func Int64Ptr(v int64) *int64 {
	return &v
}
