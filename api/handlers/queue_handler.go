package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/app"
)

// QueueHandler handles queue-related HTTP requests
type QueueHandler struct {
	orch   *app.Orchestrator
	logger *zap.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(orch *app.Orchestrator, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		orch:   orch,
		logger: logger,
	}
}

// EnqueueRequest represents a request to queue one or more URLs.
// URL may hold several newline separated URLs.
type EnqueueRequest struct {
	URLs    []string `json:"urls"`
	URL     string   `json:"url,omitempty"`
	Format  string   `json:"format,omitempty"`
	Quality string   `json:"quality,omitempty"`
}

// AllURLs merges URLs and the lines of URL
func (r EnqueueRequest) AllURLs() []string {
	urls := append([]string(nil), r.URLs...)
	if r.URL != "" {
		urls = append(urls, strings.Split(strings.ReplaceAll(r.URL, "\r\n", "\n"), "\n")...)
	}
	return urls
}

// GetQueue handles GET /api/v1/queue
func (h *QueueHandler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// Enqueue handles POST /api/v1/queue
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orch.Enqueue(req.AllURLs(), req.Format, req.Quality)
	if err != nil {
		h.logger.Warn("Failed to enqueue", zap.Error(err))
		if result != nil && len(result.Rejected) > 0 {
			c.JSON(statusFor(err), gin.H{"error": errorMessage(err), "rejected": result.Rejected})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Remove handles DELETE /api/v1/queue/:id
func (h *QueueHandler) Remove(c *gin.Context) {
	id := c.Param("id")

	removed, err := h.orch.Remove(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Clear handles POST /api/v1/queue/clear
func (h *QueueHandler) Clear(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": h.orch.Clear()})
}

// Start handles POST /api/v1/queue/start
func (h *QueueHandler) Start(c *gin.Context) {
	started := h.orch.StartQueue()
	c.JSON(http.StatusOK, gin.H{
		"started":  started,
		"draining": h.orch.IsDraining(),
	})
}

// Stop handles POST /api/v1/queue/stop
func (h *QueueHandler) Stop(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopping": h.orch.StopQueue()})
}

// Cancel handles POST /api/v1/queue/:id/cancel
func (h *QueueHandler) Cancel(c *gin.Context) {
	id := c.Param("id")

	if err := h.orch.Cancel(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// Preview handles GET /api/v1/preview?url=
func (h *QueueHandler) Preview(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'url' is required"})
		return
	}

	info, err := h.orch.Preview(c.Request.Context(), url)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}
