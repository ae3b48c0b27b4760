package http

import (
	"github.com/gin-gonic/gin"

	"github.com/avolkau/studysync/internal/config"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply auth middleware
	if cfg.AuthMode == config.AuthModeToken {
		router.Use(TokenAuthMiddleware(cfg.Database))
	} else {
		// No auth - inject default user ID
		router.Use(SingleUserMiddleware(cfg.DefaultUserID))
	}

	// Create controllers with appropriate interfaces
	health := NewHealthController(cfg.Database, cfg.Version)
	progress := NewProgressController(cfg.ProgressStore, cfg.TaskClient)

	// Health endpoints
	router.GET("/api/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Progress endpoints
	router.GET("/api/progress", progress.ListProgress)
	router.GET("/api/progress/summary", progress.GetSummary)
	router.GET("/api/progress/chapter/:chapterID", progress.GetChapterProgress)
	router.PUT("/api/progress/chapter/:chapterID", progress.UpdateChapterProgress)
	router.DELETE("/api/progress/chapter/:chapterID", progress.ResetChapterProgress)

	// Task management endpoints
	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
