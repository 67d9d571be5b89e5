package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

//go:generate moq -out snapshot_storage_mock.go . SnapshotStorage

// SnapshotStorage определяет интерфейс чтения состояния списка
type SnapshotStorage interface {
	CanAccessList(ctx context.Context, listID, userID int64) (bool, error)
	ListEntities(ctx context.Context, listID int64) ([]*models.ServerEntity, error)
}

// ListsHandler serves list snapshots used for hydration.
type ListsHandler struct {
	logger  *slog.Logger
	storage SnapshotStorage
	now     func() time.Time
}

// NewListsHandler creates a new lists handler
func NewListsHandler(logger *slog.Logger, storage SnapshotStorage) *ListsHandler {
	return &ListsHandler{
		logger:  logger,
		storage: storage,
		now:     time.Now,
	}
}

// Snapshot обрабатывает GET /api/v1/lists/{listID}/entities
// Возвращает все живые сущности списка с серверными версиями
func (h *ListsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		sendError(w, h.logger, "authentication required", http.StatusUnauthorized)
		return
	}

	listID, err := strconv.ParseInt(mux.Vars(r)["listID"], 10, 64)
	if err != nil || listID <= 0 {
		sendError(w, h.logger, "invalid list id", http.StatusBadRequest)
		return
	}

	allowed, err := h.storage.CanAccessList(ctx, listID, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to check list access", slog.Int64("list_id", listID), slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		// Не раскрываем существование чужих списков
		sendError(w, h.logger, "list not found", http.StatusNotFound)
		return
	}

	entities, err := h.storage.ListEntities(ctx, listID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list entities", slog.Int64("list_id", listID), slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.SnapshotResponse{
		Entities:      make([]api.SnapshotEntity, 0, len(entities)),
		PackingListID: listID,
		Timestamp:     h.now().UnixMilli(),
	}
	for _, e := range entities {
		resp.Entities = append(resp.Entities, api.SnapshotEntity{
			Entity:    string(e.EntityType),
			Data:      e.Data,
			ID:        e.ID,
			Version:   e.Version,
			UpdatedAt: e.UpdatedAt.UnixMilli(),
		})
	}

	h.logger.InfoContext(ctx, "snapshot served",
		slog.Int64("user_id", userID),
		slog.Int64("list_id", listID),
		slog.Int("entities_count", len(resp.Entities)))

	sendJSON(w, h.logger, resp, http.StatusOK)
}
