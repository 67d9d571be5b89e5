package api

import "encoding/json"

// SnapshotEntity одна живая сущность списка с серверной версией
type SnapshotEntity struct {
	Entity    string          `json:"entity"`
	Data      json.RawMessage `json:"data"`
	ID        int64           `json:"id"`
	Version   int64           `json:"version"`
	UpdatedAt int64           `json:"updatedAt"`
}

// SnapshotResponse ответ GET /api/v1/lists/{listID}/entities
type SnapshotResponse struct {
	Entities      []SnapshotEntity `json:"entities"`
	PackingListID int64            `json:"packingListId"`
	Timestamp     int64            `json:"timestamp"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse ответ GET /api/v1/health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}
