package apihandlers

import (
	"github.com/gin-gonic/gin"

	"memcat/internal/app"
)

// NewRouter builds the gin engine with every API route registered.
func NewRouter(a *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	RegisterRoutes(router, NewAPIHandler(a))
	return router
}

// RegisterRoutes mounts the handlers under /api/v1 plus /health.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	v1 := router.Group("/api/v1")
	{
		memories := v1.Group("/memories")
		{
			memories.POST("", h.CreateMemoryHandler)
			memories.GET("", h.ListMemoriesHandler)
			memories.GET("/:id", h.GetMemoryHandler)
			memories.PUT("/:id", h.UpdateMemoryHandler)
			memories.DELETE("/:id", h.DeleteMemoryHandler)
			memories.POST("/:id/archive", h.ArchiveMemoryHandler)
			memories.POST("/:id/categorize", h.CategorizeMemoryHandler)
		}

		v1.POST("/categorize", h.CategorizeHandler)
		v1.GET("/categories", h.ListCategoriesHandler)

		usage := v1.Group("/usage")
		{
			usage.GET("", h.ListUsageHandler)
			usage.GET("/summary", h.UsageSummaryHandler)
		}
	}

	router.GET("/health", h.HealthHandler)
}
