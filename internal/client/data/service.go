package data

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/iudanet/packsync/internal/client/querycache"
	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/internal/validation"
)

// ErrNotFound возвращается, если сущности нет в локальном кэше
var ErrNotFound = errors.New("entity not found in local cache")

// Service определяет интерфейс для клиентского data сервиса
type Service interface {
	CreateCategory(ctx context.Context, listID int64, c *models.Category) (int64, error)
	CreateBag(ctx context.Context, listID int64, b *models.Bag) (int64, error)
	CreateTraveler(ctx context.Context, listID int64, t *models.Traveler) (int64, error)
	CreateItem(ctx context.Context, listID int64, i *models.Item) (int64, error)

	Update(ctx context.Context, listID int64, entityType models.EntityType, id int64, changes map[string]any) (int64, error)
	Delete(ctx context.Context, listID int64, entityType models.EntityType, id int64) (int64, error)
	TogglePacked(ctx context.Context, listID, itemID int64) (bool, error)

	Categories(ctx context.Context, listID int64) ([]*models.Category, error)
	Bags(ctx context.Context, listID int64) ([]*models.Bag, error)
	Travelers(ctx context.Context, listID int64) ([]*models.Traveler, error)
	Items(ctx context.Context, listID int64) ([]*models.Item, error)
	Progress(ctx context.Context, listID int64) (packed, total int, err error)
}

// Recorder durably records a mutation (the sync engine).
type Recorder interface {
	RecordOperation(ctx context.Context, kind models.OperationKind, entityType models.EntityType, entityID *int64, payload json.RawMessage, listID int64) (int64, error)
}

// Reader reads cached server state.
type Reader interface {
	GetEntity(ctx context.Context, entityType models.EntityType, id int64) *models.CachedEntity
	GetAllEntities(ctx context.Context, entityType models.EntityType, listID int64) []*models.CachedEntity
}

// QueryCache memoizes typed reads until the engine invalidates them.
type QueryCache interface {
	GetOrLoad(ctx context.Context, key querycache.Key, load querycache.Loader) (any, error)
}

// service handles list mutations and typed reads
type service struct {
	recorder Recorder
	reader   Reader
	cache    QueryCache
	logger   *slog.Logger
}

// NewService creates a new data service
func NewService(recorder Recorder, reader Reader, cache QueryCache, logger *slog.Logger) Service {
	return &service{
		recorder: recorder,
		reader:   reader,
		cache:    cache,
		logger:   logger,
	}
}

// CreateCategory records a new category. The server assigns its id.
func (s *service) CreateCategory(ctx context.Context, listID int64, c *models.Category) (int64, error) {
	if err := validation.ValidateCategory(c); err != nil {
		return 0, err
	}
	return s.create(ctx, listID, models.EntityCategory, c)
}

// CreateBag records a new bag.
func (s *service) CreateBag(ctx context.Context, listID int64, b *models.Bag) (int64, error) {
	if err := validation.ValidateBag(b); err != nil {
		return 0, err
	}
	return s.create(ctx, listID, models.EntityBag, b)
}

// CreateTraveler records a new traveler.
func (s *service) CreateTraveler(ctx context.Context, listID int64, t *models.Traveler) (int64, error) {
	if err := validation.ValidateTraveler(t); err != nil {
		return 0, err
	}
	return s.create(ctx, listID, models.EntityTraveler, t)
}

// CreateItem records a new item.
func (s *service) CreateItem(ctx context.Context, listID int64, i *models.Item) (int64, error) {
	if err := validation.ValidateItem(i); err != nil {
		return 0, err
	}
	if i.Quantity == 0 {
		i.Quantity = 1
	}
	return s.create(ctx, listID, models.EntityItem, i)
}

func (s *service) create(ctx context.Context, listID int64, entityType models.EntityType, v any) (int64, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", entityType, err)
	}

	opID, err := s.recorder.RecordOperation(ctx, models.OperationCreate, entityType, nil, payload, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", entityType, err)
	}
	return opID, nil
}

// Update records a partial change of an existing entity.
func (s *service) Update(ctx context.Context, listID int64, entityType models.EntityType, id int64, changes map[string]any) (int64, error) {
	if err := validation.ValidateChanges(entityType, changes); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal changes: %w", err)
	}

	opID, err := s.recorder.RecordOperation(ctx, models.OperationUpdate, entityType, models.Int64Ptr(id), payload, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", models.EntityKey(entityType, id), err)
	}
	return opID, nil
}

// Delete records the removal of an entity.
func (s *service) Delete(ctx context.Context, listID int64, entityType models.EntityType, id int64) (int64, error) {
	opID, err := s.recorder.RecordOperation(ctx, models.OperationDelete, entityType, models.Int64Ptr(id), nil, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", models.EntityKey(entityType, id), err)
	}
	return opID, nil
}

// TogglePacked flips the packed flag of a cached item and returns the new value.
func (s *service) TogglePacked(ctx context.Context, listID, itemID int64) (bool, error) {
	cached := s.reader.GetEntity(ctx, models.EntityItem, itemID)
	if cached == nil {
		return false, fmt.Errorf("%w: %s", ErrNotFound, models.EntityKey(models.EntityItem, itemID))
	}

	var item models.Item
	if err := json.Unmarshal(cached.Data, &item); err != nil {
		return false, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	packed := !item.Packed
	if _, err := s.Update(ctx, listID, models.EntityItem, itemID, map[string]any{"packed": packed}); err != nil {
		return false, err
	}
	return packed, nil
}

// Categories returns the cached categories of a list ordered by id.
func (s *service) Categories(ctx context.Context, listID int64) ([]*models.Category, error) {
	return load(ctx, s, models.EntityCategory, listID, func(c *models.Category, e *models.CachedEntity) {
		c.ID, c.ListID = e.ID, e.ListID
	})
}

// Bags returns the cached bags of a list ordered by id.
func (s *service) Bags(ctx context.Context, listID int64) ([]*models.Bag, error) {
	return load(ctx, s, models.EntityBag, listID, func(b *models.Bag, e *models.CachedEntity) {
		b.ID, b.ListID = e.ID, e.ListID
	})
}

// Travelers returns the cached travelers of a list ordered by id.
func (s *service) Travelers(ctx context.Context, listID int64) ([]*models.Traveler, error) {
	return load(ctx, s, models.EntityTraveler, listID, func(t *models.Traveler, e *models.CachedEntity) {
		t.ID, t.ListID = e.ID, e.ListID
	})
}

// Items returns the cached items of a list ordered by id.
func (s *service) Items(ctx context.Context, listID int64) ([]*models.Item, error) {
	return load(ctx, s, models.EntityItem, listID, func(i *models.Item, e *models.CachedEntity) {
		i.ID, i.ListID = e.ID, e.ListID
	})
}

// Progress counts packed items of a list.
func (s *service) Progress(ctx context.Context, listID int64) (int, int, error) {
	items, err := s.Items(ctx, listID)
	if err != nil {
		return 0, 0, err
	}
	packed := 0
	for _, i := range items {
		if i.Packed {
			packed++
		}
	}
	return packed, len(items), nil
}

// load декодирует кэшированные сущности одного типа через query cache.
// Результат общий для всех вызывающих и не должен изменяться.
func load[T any](ctx context.Context, s *service, entityType models.EntityType, listID int64, bind func(*T, *models.CachedEntity)) ([]*T, error) {
	key := querycache.Key{Entity: entityType, ListID: listID}

	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		entities := s.reader.GetAllEntities(ctx, entityType, listID)
		slices.SortFunc(entities, func(a, b *models.CachedEntity) int { return cmp.Compare(a.ID, b.ID) })

		out := make([]*T, 0, len(entities))
		for _, e := range entities {
			var v T
			if err := json.Unmarshal(e.Data, &v); err != nil {
				// Пропускаем поврежденные записи
				s.logger.Warn("Skipping corrupted cache entry", "entity", entityType, "id", e.ID, "error", err)
				continue
			}
			bind(&v, e)
			out = append(out, &v)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	out, ok := v.([]*T)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value for %s", key)
	}
	return out, nil
}
