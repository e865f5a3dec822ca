package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-queue-go/api/handlers"
	"github.com/yourusername/media-queue-go/api/middleware"
	"github.com/yourusername/media-queue-go/internal/app"
	"github.com/yourusername/media-queue-go/pkg/logger"
)

// SetupRouter sets up the HTTP router for the REST API and the realtime channel
func SetupRouter(orch *app.Orchestrator, logAdapter *logger.LoggerAdapter, logsDir string) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logAdapter))
	router.Use(middleware.Recovery(logAdapter))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(orch)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Realtime channel
	socketHandler := handlers.NewSocketHandler(orch, logAdapter.General())
	router.GET("/ws", socketHandler.HandleWebSocket)

	// History endpoints used by the browser UI
	historyHandler := handlers.NewHistoryHandler(orch, logAdapter.General())
	legacy := router.Group("/api")
	{
		legacy.GET("/history", historyHandler.List)
		legacy.GET("/search-history", historyHandler.Search)
		legacy.DELETE("/delete/:id", historyHandler.Delete)
		legacy.POST("/clear-history", historyHandler.Clear)
		legacy.GET("/export-history", historyHandler.Export)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		queueHandler := handlers.NewQueueHandler(orch, logAdapter.General())
		queue := v1.Group("/queue")
		{
			queue.GET("", queueHandler.GetQueue)
			queue.POST("", queueHandler.Enqueue)
			queue.POST("/clear", queueHandler.Clear)
			queue.POST("/start", queueHandler.Start)
			queue.POST("/stop", queueHandler.Stop)
			queue.DELETE("/:id", queueHandler.Remove)
			queue.POST("/:id/cancel", queueHandler.Cancel)
		}
		v1.GET("/preview", queueHandler.Preview)

		history := v1.Group("/history")
		{
			history.GET("", historyHandler.List)
			history.GET("/search", historyHandler.Search)
			history.GET("/stats", historyHandler.Stats)
			history.GET("/export", historyHandler.Export)
			history.DELETE("/:id", historyHandler.Delete)
			history.DELETE("", historyHandler.Clear)
		}

		// Log endpoints
		logHandler := handlers.NewLogHandler(logsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
