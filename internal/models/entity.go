package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EntityType тип сущности внутри списка
type EntityType string

const (
	EntityList     EntityType = "list"
	EntityCategory EntityType = "category"
	EntityBag      EntityType = "bag"
	EntityTraveler EntityType = "traveler"
	EntityItem     EntityType = "item"
)

// EntityTypes lists every known entity type in dependency order.
var EntityTypes = []EntityType{EntityList, EntityCategory, EntityBag, EntityTraveler, EntityItem}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityList, EntityCategory, EntityBag, EntityTraveler, EntityItem:
		return true
	}
	return false
}

// ParseEntityType converts a wire name into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// Dependents returns the entity types whose views must be invalidated
// when an entity of type t changes. Item changes affect aggregate counts
// of categories, bags and travelers.
func (t EntityType) Dependents() []EntityType {
	switch t {
	case EntityItem:
		return []EntityType{EntityItem, EntityCategory, EntityBag, EntityTraveler}
	case EntityCategory, EntityBag, EntityTraveler:
		return []EntityType{t, EntityItem}
	case EntityList:
		return EntityTypes
	}
	return []EntityType{t}
}

// EntityKey builds the composite cache key "<entity>:<id>".
func EntityKey(t EntityType, id int64) string {
	return string(t) + ":" + strconv.FormatInt(id, 10)
}

// ParseEntityKey splits a composite key back into its parts.
func ParseEntityKey(key string) (EntityType, int64, error) {
	typ, rawID, ok := strings.Cut(key, ":")
	if !ok {
		return "", 0, fmt.Errorf("invalid entity key %q", key)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid entity id in key %q: %w", key, err)
	}
	return EntityType(typ), id, nil
}

// CachedEntity последний известный снимок серверной сущности
type CachedEntity struct {
	Key          string          `json:"key"`           // Key составной ключ "<entity>:<id>"
	EntityType   EntityType      `json:"entity"`        // EntityType тип сущности
	Data         json.RawMessage `json:"data"`          // Data непрозрачный JSON payload
	ID           int64           `json:"id"`            // ID идентификатор сущности
	ListID       int64           `json:"packingListId"` // ListID список-владелец
	Version      int64           `json:"version"`       // Version версия, назначенная сервером
	LastModified int64           `json:"lastModified"`  // LastModified unix ms
}

// AcceptsVersion reports whether an incoming update carrying version v
// may replace this snapshot. Versions never regress: v must be strictly greater.
func (e *CachedEntity) AcceptsVersion(v int64) bool {
	if e == nil {
		return true
	}
	return v > e.Version
}

// Clone создает глубокую копию записи
func (e *CachedEntity) Clone() *CachedEntity {
	c := *e
	c.Data = cloneRaw(e.Data)
	return &c
}

func cloneRaw(m json.RawMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(json.RawMessage, len(m))
	copy(out, m)
	return out
}

// MergeShallow overlays the top-level fields of changes onto base.
// A base that is empty or not a JSON object is treated as {}.
func MergeShallow(base, changes json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		// Невалидная или не-объектная база просто отбрасывается
		_ = json.Unmarshal(base, &merged)
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}

	if len(changes) > 0 {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(changes, &overlay); err != nil {
			return nil, fmt.Errorf("changes must be a JSON object: %w", err)
		}
		for k, v := range overlay {
			merged[k] = v
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged data: %w", err)
	}
	return out, nil
}
