package router

import (
	"net/http"

	"github.com/ehealth-tools/registry-sync/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "registry-sync-api",
		})
	})

	syncHandler := handler.NewSyncHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		legalEntities := v1.Group("/legal-entities/:legal_entity_id")
		{
			// POST /api/v1/legal-entities/:legal_entity_id/sync/:category - Trigger a sync
			legalEntities.POST("/sync/:category", syncHandler.TriggerSync)

			// GET /api/v1/legal-entities/:legal_entity_id/sync - Sync status per category
			legalEntities.GET("/sync", syncHandler.SyncStatus)
		}

		// GET /api/v1/sync/batches - List batches with filtering and pagination
		v1.GET("/sync/batches", syncHandler.ListBatches)
	}

	return r
}
