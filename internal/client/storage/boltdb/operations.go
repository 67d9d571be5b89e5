package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/models"
)

// unsyncedKey: listID|timestamp|id, big-endian, чтобы курсор шел в порядке воспроизведения
func unsyncedKey(op *models.PendingOperation) []byte {
	return concat(u64(op.ListID), u64(op.Timestamp), u64(op.ID))
}

// EnqueueOperation appends an operation to the log
func (s *Storage) EnqueueOperation(ctx context.Context, op *models.PendingOperation) (int64, error) {
	var id int64

	err := s.update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, bucketOpsUnsync)
		if err != nil {
			return err
		}

		seq, err := ops.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate operation id: %w", err)
		}

		stored := op.Clone()
		stored.ID = int64(seq)
		stored.Synced = false
		stored.SyncedAt = 0

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		if err := ops.Put(u64(stored.ID), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		if err := idx.Put(unsyncedKey(stored), nil); err != nil {
			return fmt.Errorf("failed to index operation: %w", err)
		}

		id = stored.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetOperation retrieves an operation by id
func (s *Storage) GetOperation(ctx context.Context, id int64) (*models.PendingOperation, error) {
	var op *models.PendingOperation

	err := s.view(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		op, err = getOperation(ops, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

func getOperation(ops *bbolt.Bucket, id int64) (*models.PendingOperation, error) {
	data := ops.Get(u64(id))
	if data == nil {
		return nil, storage.ErrOperationNotFound
	}

	op := &models.PendingOperation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation %d: %w", id, err)
	}
	return op, nil
}

// ListUnsyncedOperations returns unsynced operations in replay order
func (s *Storage) ListUnsyncedOperations(ctx context.Context, listID int64) ([]*models.PendingOperation, error) {
	result := make([]*models.PendingOperation, 0)

	err := s.view(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, bucketOpsUnsync)
		if err != nil {
			return err
		}

		var prefix []byte
		if listID != storage.AllLists {
			prefix = u64(listID)
		}

		c := idx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			op, err := getOperation(ops, fromU64(k[16:24]))
			if err != nil {
				return err
			}
			result = append(result, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Индекс упорядочен по списку; для всех списков пересортируем по времени
	if listID == storage.AllLists {
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].Timestamp == result[j].Timestamp {
				return result[i].ID < result[j].ID
			}
			return result[i].Timestamp < result[j].Timestamp
		})
	}

	return result, nil
}

// MarkSynced flips the synced flag and drops the operation from the unsynced index
func (s *Storage) MarkSynced(ctx context.Context, id int64, syncedAt int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, bucketOpsUnsync)
		if err != nil {
			return err
		}

		op, err := getOperation(ops, id)
		if err != nil {
			return err
		}
		if op.Synced {
			return nil
		}

		if err := idx.Delete(unsyncedKey(op)); err != nil {
			return fmt.Errorf("failed to unindex operation: %w", err)
		}

		op.Synced = true
		op.SyncedAt = syncedAt
		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		return ops.Put(u64(id), data)
	})
}

// CountPending counts unsynced operations by prefix scan of the index
func (s *Storage) CountPending(ctx context.Context, listID int64) (int, error) {
	count := 0

	err := s.view(func(tx *bbolt.Tx) error {
		idx, err := bucket(tx, bucketOpsUnsync)
		if err != nil {
			return err
		}

		if listID == storage.AllLists {
			count = idx.Stats().KeyN
			return nil
		}

		prefix := u64(listID)
		c := idx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// PruneSynced removes synced operations older than before
func (s *Storage) PruneSynced(ctx context.Context, before int64) (int, error) {
	removed := 0

	err := s.update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}

		// Собираем ключи заранее: удаление под курсором пропускает записи
		var victims [][]byte
		err = ops.ForEach(func(k, v []byte) error {
			var op models.PendingOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if op.Synced && op.SyncedAt < before {
				victims = append(victims, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range victims {
			if err := ops.Delete(k); err != nil {
				return fmt.Errorf("failed to delete operation: %w", err)
			}
		}
		removed = len(victims)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
