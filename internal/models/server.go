package models

import (
	"encoding/json"
	"time"
)

// ServerEntity авторитетное состояние сущности на сервере
type ServerEntity struct {
	UpdatedAt  time.Time       `json:"updatedAt"`
	EntityType EntityType      `json:"entity"`
	Data       json.RawMessage `json:"data"`
	ID         int64           `json:"id"`
	ListID     int64           `json:"packingListId"`
	Version    int64           `json:"version"`
	UpdatedBy  int64           `json:"updatedBy"`
	Deleted    bool            `json:"deleted"`
}
