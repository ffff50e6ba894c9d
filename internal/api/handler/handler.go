package handler

import (
	"context"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/ehealth-tools/registry-sync/internal/sync/orchestrator"
	"github.com/ehealth-tools/registry-sync/internal/sync/store"
)

// SyncService triggers synchronization cycles.
type SyncService interface {
	Start(ctx context.Context, legalEntityID int64, kind domain.EntityKind, user domain.User, token string) (*orchestrator.Result, error)
}

// StatusStore reads per-category sync statuses.
type StatusStore interface {
	Statuses(ctx context.Context, id int64) (map[domain.EntityKind]domain.SyncStatus, error)
}

// BatchStore lists durable batch records.
type BatchStore interface {
	List(ctx context.Context, filter store.BatchFilter) ([]domain.Batch, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Sync          SyncService
	LegalEntities StatusStore
	Batches       BatchStore
}

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	logger        *slog.Logger
	sync          SyncService
	legalEntities StatusStore
	batches       BatchStore
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger:        deps.Logger,
		sync:          deps.Sync,
		legalEntities: deps.LegalEntities,
		batches:       deps.Batches,
	}
}
