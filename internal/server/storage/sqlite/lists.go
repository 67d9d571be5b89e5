package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/internal/server/storage"
)

// CreateList creates a list with its owner membership and list entity
func (s *Storage) CreateList(ctx context.Context, name string, ownerID int64) (list *models.PackingList, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO lists (name, owner_id, created_at) VALUES (?, ?, ?)`,
		name, ownerID, toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert list: %w", err)
	}
	listID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get list id: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO list_members (list_id, user_id, role, added_at) VALUES (?, ?, ?, ?)`,
		listID, ownerID, models.RoleOwner, toMillis(now),
	); err != nil {
		return nil, fmt.Errorf("failed to insert owner: %w", err)
	}

	data, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list entity: %w", err)
	}
	entity := &models.ServerEntity{
		EntityType: models.EntityList,
		ID:         listID,
		ListID:     listID,
		Version:    1,
		Data:       data,
		UpdatedBy:  ownerID,
		UpdatedAt:  now,
	}
	if err = insertEntity(ctx, tx, entity); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit list: %w", err)
	}

	return &models.PackingList{
		ID:        listID,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: fromMillis(toMillis(now)),
	}, nil
}

// GetList retrieves list by ID
func (s *Storage) GetList(ctx context.Context, listID int64) (*models.PackingList, error) {
	list := &models.PackingList{}
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM lists WHERE id = ?`, listID,
	).Scan(&list.ID, &list.Name, &list.OwnerID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}

	list.CreatedAt = fromMillis(createdAt)
	return list, nil
}

// AddMember grants userID access to the list
func (s *Storage) AddMember(ctx context.Context, listID, userID int64, role string) error {
	if _, err := s.GetList(ctx, listID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO list_members (list_id, user_id, role, added_at) VALUES (?, ?, ?, ?)`,
		listID, userID, role, toMillis(s.now()),
	)
	if err != nil {
		// Проверяем на повторное добавление
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrMemberExists
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// ListMembers returns list members ordered by join time
func (s *Storage) ListMembers(ctx context.Context, listID int64) (members []*models.ListMember, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT list_id, user_id, role, added_at FROM list_members WHERE list_id = ? ORDER BY added_at, user_id`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	members = make([]*models.ListMember, 0)
	for rows.Next() {
		m := &models.ListMember{}
		var addedAt int64
		if err := rows.Scan(&m.ListID, &m.UserID, &m.Role, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.AddedAt = fromMillis(addedAt)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return members, nil
}

// CanAccessList reports whether userID is a member of the list
func (s *Storage) CanAccessList(ctx context.Context, listID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM list_members WHERE list_id = ? AND user_id = ?`, listID, userID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}
