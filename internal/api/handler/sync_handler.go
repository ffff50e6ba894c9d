package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/api/dto"
	"github.com/ehealth-tools/registry-sync/internal/registry"
	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/ehealth-tools/registry-sync/internal/sync/store"
	"github.com/gin-gonic/gin"
)

// Request headers carrying the operator's registry credentials. The token is
// never logged or persisted in plaintext.
const (
	HeaderRegistryToken  = "X-Registry-Token"
	HeaderUserID         = "X-User-Id"
	HeaderUserRegistryID = "X-User-Registry-Id"
)

// TriggerSync handles POST /api/v1/legal-entities/:legal_entity_id/sync/:category
// Starts or resumes synchronization of one entity category
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	legalEntityID, err := strconv.ParseInt(c.Param("legal_entity_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "legal_entity_id must be an integer",
		})
		return
	}

	kind, err := domain.ParseEntityKind(c.Param("category"))
	if err != nil {
		h.logger.Error("Unknown sync category", slog.String("category", c.Param("category")))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown category",
		})
		return
	}

	token := c.GetHeader(HeaderRegistryToken)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "registry token is required",
		})
		return
	}

	user := domain.User{
		ID:         c.GetHeader(HeaderUserID),
		RegistryID: c.GetHeader(HeaderUserRegistryID),
	}
	if kind.RoleScoped() && user.RegistryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "employee-scoped categories require the " + HeaderUserRegistryID + " header",
		})
		return
	}

	h.logger.Info("TriggerSync called",
		slog.Int64("legal_entity_id", legalEntityID),
		slog.String("category", string(kind)),
		slog.String("user_id", user.ID),
	)

	result, err := h.sync.Start(c.Request.Context(), legalEntityID, kind, user, token)
	if err != nil {
		h.respondSyncError(c, err)
		return
	}

	status := http.StatusAccepted
	if result.BatchID == "" {
		status = http.StatusOK
	}

	c.JSON(status, dto.TriggerSyncResponse{
		Status:  result.Status,
		Message: result.Message,
		BatchID: result.BatchID,
	})
}

// SyncStatus handles GET /api/v1/legal-entities/:legal_entity_id/sync
// Returns the sync status of every entity category
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	legalEntityID, err := strconv.ParseInt(c.Param("legal_entity_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "legal_entity_id must be an integer",
		})
		return
	}

	statuses, err := h.legalEntities.Statuses(c.Request.Context(), legalEntityID)
	if err != nil {
		if errors.Is(err, domain.ErrLegalEntityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "legal entity not found",
			})
			return
		}
		h.logger.Error("Failed to get sync statuses", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get sync statuses",
		})
		return
	}

	out := make(map[string]string, len(statuses))
	for kind, status := range statuses {
		out[string(kind)] = string(status)
	}

	c.JSON(http.StatusOK, dto.SyncStatusResponse{
		LegalEntityID: legalEntityID,
		Statuses:      out,
	})
}

// ListBatches handles GET /api/v1/sync/batches
// Lists batch records with optional filtering and cursor pagination
func (h *SyncHandler) ListBatches(c *gin.Context) {
	var req dto.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeBatchCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := store.BatchFilter{
		LegalEntityID: req.LegalEntityID,
		Name:          req.Name,
		PageSize:      req.PageSize,
		Cursor:        cursor,
	}

	batches, err := h.batches.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list batches", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list batches",
		})
		return
	}

	hasMore := len(batches) > req.PageSize
	if hasMore {
		batches = batches[:req.PageSize]
	}

	batchResponse := make([]dto.BatchDTO, len(batches))
	for i, b := range batches {
		batchResponse[i] = toBatchDTO(b)
	}

	var nextCursor string
	if hasMore {
		last := batches[len(batches)-1]
		cursorObj := store.BatchCursor{
			CreatedAt: last.CreatedAt,
			BatchID:   last.ID,
		}
		nextCursor, err = EncodeBatchCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListBatchesResponse{
		Batches:    batchResponse,
		NextCursor: nextCursor,
	})
}

// respondSyncError maps orchestration errors to HTTP statuses.
func (h *SyncHandler) respondSyncError(c *gin.Context, err error) {
	var respErr *registry.ResponseError

	switch {
	case errors.Is(err, domain.ErrSyncAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{
			"error": "synchronization is already running for this category",
		})
	case errors.Is(err, domain.ErrLegalEntityNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "legal entity not found",
		})
	case errors.Is(err, domain.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown category",
		})
	case errors.Is(err, registry.ErrConnection):
		h.logger.Error("Registry unreachable", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "registry is unreachable",
		})
	case errors.As(err, &respErr):
		h.logger.Error("Registry rejected the request",
			slog.Int("status_code", respErr.StatusCode),
			slog.String("error", respErr.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "registry request failed",
		})
	default:
		h.logger.Error("Failed to trigger sync", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to trigger sync",
		})
	}
}

func toBatchDTO(b domain.Batch) dto.BatchDTO {
	categories := make([]string, len(b.Options.Categories))
	for i, kind := range b.Options.Categories {
		categories[i] = string(kind)
	}

	out := dto.BatchDTO{
		BatchID:       b.ID,
		Name:          b.Name,
		LegalEntityID: b.LegalEntityID,
		TotalJobs:     b.TotalJobs,
		PendingJobs:   b.PendingJobs,
		FailedJobs:    b.FailedJobs,
		Categories:    categories,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		out.CancelledAt = b.CancelledAt.Format(time.RFC3339)
	}
	if b.FinishedAt != nil {
		out.FinishedAt = b.FinishedAt.Format(time.RFC3339)
	}
	return out
}
