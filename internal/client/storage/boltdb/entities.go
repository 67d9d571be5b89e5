package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/models"
)

func typePrefix(t models.EntityType, listID int64) []byte {
	return concat([]byte(t), []byte{0}, u64(listID))
}

func typeKey(e *models.CachedEntity) []byte {
	return concat(typePrefix(e.EntityType, e.ListID), u64(e.ID))
}

func listKey(e *models.CachedEntity) []byte {
	return concat(u64(e.ListID), []byte(e.Key))
}

type entityBuckets struct {
	data, byType, byList *bbolt.Bucket
}

func entityBucketsOf(tx *bbolt.Tx) (*entityBuckets, error) {
	var (
		b   entityBuckets
		err error
	)
	if b.data, err = bucket(tx, bucketEntities); err != nil {
		return nil, err
	}
	if b.byType, err = bucket(tx, bucketEntType); err != nil {
		return nil, err
	}
	if b.byList, err = bucket(tx, bucketEntList); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *entityBuckets) get(key []byte) (*models.CachedEntity, error) {
	data := b.data.Get(key)
	if data == nil {
		return nil, storage.ErrEntityNotFound
	}
	e := &models.CachedEntity{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity %s: %w", key, err)
	}
	return e, nil
}

// remove удаляет запись вместе с индексами
func (b *entityBuckets) remove(e *models.CachedEntity) error {
	if err := b.byType.Delete(typeKey(e)); err != nil {
		return err
	}
	if err := b.byList.Delete(listKey(e)); err != nil {
		return err
	}
	return b.data.Delete([]byte(e.Key))
}

// PutEntity upserts an entity snapshot
func (s *Storage) PutEntity(ctx context.Context, entity *models.CachedEntity) error {
	stored := entity.Clone()
	stored.Key = models.EntityKey(stored.EntityType, stored.ID)

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := entityBucketsOf(tx)
		if err != nil {
			return err
		}

		// Список-владелец мог измениться: чистим старые индексы
		if prev, err := b.get([]byte(stored.Key)); err == nil {
			if err := b.remove(prev); err != nil {
				return fmt.Errorf("failed to replace entity: %w", err)
			}
		}

		if err := b.data.Put([]byte(stored.Key), data); err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		if err := b.byType.Put(typeKey(stored), []byte(stored.Key)); err != nil {
			return fmt.Errorf("failed to index entity: %w", err)
		}
		if err := b.byList.Put(listKey(stored), nil); err != nil {
			return fmt.Errorf("failed to index entity: %w", err)
		}
		return nil
	})
}

// GetEntity retrieves an entity snapshot
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id int64) (*models.CachedEntity, error) {
	var entity *models.CachedEntity

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := entityBucketsOf(tx)
		if err != nil {
			return err
		}
		entity, err = b.get([]byte(models.EntityKey(entityType, id)))
		return err
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// GetAllEntities returns all entities of one type within a list
func (s *Storage) GetAllEntities(ctx context.Context, entityType models.EntityType, listID int64) ([]*models.CachedEntity, error) {
	result := make([]*models.CachedEntity, 0)

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := entityBucketsOf(tx)
		if err != nil {
			return err
		}

		prefix := typePrefix(entityType, listID)
		c := b.byType.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			e, err := b.get(v)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteEntity removes an entity snapshot
func (s *Storage) DeleteEntity(ctx context.Context, entityType models.EntityType, id int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := entityBucketsOf(tx)
		if err != nil {
			return err
		}

		e, err := b.get([]byte(models.EntityKey(entityType, id)))
		if err == storage.ErrEntityNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return b.remove(e)
	})
}

// ClearList drops cached entities of a list, or of every list for AllLists
func (s *Storage) ClearList(ctx context.Context, listID int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		if listID == storage.AllLists {
			for _, name := range [][]byte{bucketEntities, bucketEntType, bucketEntList} {
				if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
					return fmt.Errorf("failed to drop %s bucket: %w", name, err)
				}
				if _, err := tx.CreateBucket(name); err != nil {
					return fmt.Errorf("failed to recreate %s bucket: %w", name, err)
				}
			}
			return nil
		}

		b, err := entityBucketsOf(tx)
		if err != nil {
			return err
		}

		prefix := u64(listID)
		var victims []*models.CachedEntity
		c := b.byList.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			e, err := b.get(k[8:])
			if err != nil {
				return err
			}
			victims = append(victims, e)
		}

		for _, e := range victims {
			if err := b.remove(e); err != nil {
				return fmt.Errorf("failed to clear entity %s: %w", e.Key, err)
			}
		}
		return nil
	})
}
