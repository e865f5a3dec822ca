package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-queue-go/internal/app"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	orch *app.Orchestrator
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orch *app.Orchestrator) *HealthHandler {
	return &HealthHandler{
		orch: orch,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Draining bool `json:"draining"`
		Jobs     int  `json:"jobs"`
	} `json:"queue"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	snap := h.orch.Snapshot()

	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Queue.Draining = snap.Draining
	response.Queue.Jobs = len(snap.Jobs)

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.orch.HistoryStats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "history store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
