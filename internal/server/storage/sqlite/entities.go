package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/internal/server/storage"
)

const entityColumns = `entity, entity_id, list_id, data, version, deleted, updated_by, updated_at`

// ApplyMutation applies one client operation atomically
func (s *Storage) ApplyMutation(ctx context.Context, m *storage.Mutation) (result *storage.MutationResult, err error) {
	if !m.Kind.Valid() || !m.EntityType.Valid() {
		return nil, fmt.Errorf("%w: %s %s", storage.ErrInvalidMutation, m.Kind, m.EntityType)
	}
	if m.Kind != models.OperationCreate && m.EntityID == nil {
		return nil, fmt.Errorf("%w: %s requires an entity id", storage.ErrInvalidMutation, m.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Повтор уже примененной операции возвращает текущее состояние
	if m.OperationID != "" {
		dup, err := appliedEntity(ctx, tx, m.OperationID)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit: %w", err)
			}
			return &storage.MutationResult{Entity: dup, Duplicate: true}, nil
		}
	}

	var one int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE id = ?`, m.ListID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = storage.ErrListNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to check list: %w", err)
	}

	now := s.now()
	var entity *models.ServerEntity
	switch m.Kind {
	case models.OperationCreate:
		entity, err = createEntity(ctx, tx, m, now)
	case models.OperationUpdate:
		entity, err = updateEntity(ctx, tx, m, now)
	case models.OperationDelete:
		entity, err = deleteEntity(ctx, tx, m, now)
	}
	if err != nil {
		return nil, err
	}

	if m.OperationID != "" {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO applied_operations (operation_id, entity, entity_id, list_id, user_id, applied_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.OperationID, string(entity.EntityType), entity.ID, entity.ListID, m.UserID, toMillis(now),
		); err != nil {
			return nil, fmt.Errorf("failed to record operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mutation: %w", err)
	}
	return &storage.MutationResult{Entity: entity}, nil
}

func appliedEntity(ctx context.Context, q queryer, operationID string) (*models.ServerEntity, error) {
	var entity string
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT entity, entity_id FROM applied_operations WHERE operation_id = ?`, operationID,
	).Scan(&entity, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check applied operation: %w", err)
	}
	return getEntity(ctx, q, models.EntityType(entity), id)
}

func createEntity(ctx context.Context, q queryer, m *storage.Mutation, now time.Time) (*models.ServerEntity, error) {
	if m.EntityType == models.EntityList {
		return nil, fmt.Errorf("%w: lists are created by the server", storage.ErrInvalidMutation)
	}

	data, err := models.MergeShallow(nil, m.Changes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidMutation, err)
	}

	var id int64
	if m.EntityID != nil {
		id = *m.EntityID
		existing, err := getEntity(ctx, q, m.EntityType, id)
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s already exists", storage.ErrInvalidMutation, models.EntityKey(m.EntityType, id))
		}
	} else {
		// Идентификаторы уникальны в пределах типа, ключ кэша клиента "<entity>:<id>"
		if err := q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(entity_id), 0) + 1 FROM entities WHERE entity = ?`, string(m.EntityType),
		).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to allocate entity id: %w", err)
		}
	}

	entity := &models.ServerEntity{
		EntityType: m.EntityType,
		ID:         id,
		ListID:     m.ListID,
		Version:    1,
		Data:       data,
		UpdatedBy:  m.UserID,
		UpdatedAt:  fromMillis(toMillis(now)),
	}
	if err := insertEntity(ctx, q, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func updateEntity(ctx context.Context, q queryer, m *storage.Mutation, now time.Time) (*models.ServerEntity, error) {
	entity, err := liveEntity(ctx, q, m)
	if err != nil {
		return nil, err
	}

	data, err := models.MergeShallow(entity.Data, m.Changes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidMutation, err)
	}

	if m.EntityType == models.EntityList {
		var changes struct {
			Name *string `json:"name"`
		}
		if err := json.Unmarshal(m.Changes, &changes); err == nil && changes.Name != nil {
			if _, err := q.ExecContext(ctx, `UPDATE lists SET name = ? WHERE id = ?`, *changes.Name, entity.ID); err != nil {
				return nil, fmt.Errorf("failed to rename list: %w", err)
			}
		}
	}

	entity.Data = data
	entity.Version++
	entity.UpdatedBy = m.UserID
	entity.UpdatedAt = fromMillis(toMillis(now))

	if err := saveEntity(ctx, q, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func deleteEntity(ctx context.Context, q queryer, m *storage.Mutation, now time.Time) (*models.ServerEntity, error) {
	if m.EntityType == models.EntityList {
		return nil, fmt.Errorf("%w: lists cannot be deleted over the realtime channel", storage.ErrInvalidMutation)
	}

	entity, err := liveEntity(ctx, q, m)
	if err != nil {
		return nil, err
	}

	entity.Deleted = true
	entity.Version++
	entity.UpdatedBy = m.UserID
	entity.UpdatedAt = fromMillis(toMillis(now))

	if err := saveEntity(ctx, q, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// liveEntity загружает неудаленную сущность, принадлежащую списку мутации
func liveEntity(ctx context.Context, q queryer, m *storage.Mutation) (*models.ServerEntity, error) {
	entity, err := getEntity(ctx, q, m.EntityType, *m.EntityID)
	if err != nil {
		return nil, err
	}
	if entity.Deleted || entity.ListID != m.ListID {
		return nil, storage.ErrEntityNotFound
	}
	return entity, nil
}

func insertEntity(ctx context.Context, q queryer, e *models.ServerEntity) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.EntityType), e.ID, e.ListID, string(e.Data), e.Version, boolToInt(e.Deleted), e.UpdatedBy, toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

func saveEntity(ctx context.Context, q queryer, e *models.ServerEntity) error {
	_, err := q.ExecContext(ctx,
		`UPDATE entities SET data = ?, version = ?, deleted = ?, updated_by = ?, updated_at = ?
		 WHERE entity = ? AND entity_id = ?`,
		string(e.Data), e.Version, boolToInt(e.Deleted), e.UpdatedBy, toMillis(e.UpdatedAt),
		string(e.EntityType), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	return nil
}

// getEntity возвращает сущность, включая удаленные
func getEntity(ctx context.Context, q queryer, entityType models.EntityType, id int64) (*models.ServerEntity, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity = ? AND entity_id = ?`,
		string(entityType), id,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// GetEntity retrieves a live entity
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id int64) (*models.ServerEntity, error) {
	e, err := getEntity(ctx, s.db, entityType, id)
	if err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, storage.ErrEntityNotFound
	}
	return e, nil
}

// ListEntities returns live entities of a list ordered by type and id
func (s *Storage) ListEntities(ctx context.Context, listID int64) (entities []*models.ServerEntity, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE list_id = ? AND deleted = 0 ORDER BY entity, entity_id`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	entities = make([]*models.ServerEntity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entities, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.ServerEntity, error) {
	e := &models.ServerEntity{}
	var entity, data string
	var deleted int
	var updatedAt int64

	if err := row.Scan(&entity, &e.ID, &e.ListID, &data, &e.Version, &deleted, &e.UpdatedBy, &updatedAt); err != nil {
		return nil, err
	}

	e.EntityType = models.EntityType(entity)
	e.Data = json.RawMessage(data)
	e.Deleted = intToBool(deleted)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
