package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/app"
	"github.com/yourusername/media-queue-go/internal/domain"
)

// HistoryHandler handles download history requests
type HistoryHandler struct {
	orch   *app.Orchestrator
	logger *zap.Logger
	now    func() time.Time
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(orch *app.Orchestrator, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		orch:   orch,
		logger: logger,
		now:    time.Now,
	}
}

// List handles GET /api/history
func (h *HistoryHandler) List(c *gin.Context) {
	records, err := h.orch.ListHistory(c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

// Search handles GET /api/search-history
func (h *HistoryHandler) Search(c *gin.Context) {
	records, err := h.orch.SearchHistory(c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

// Delete handles DELETE /api/delete/:id
func (h *HistoryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid history id"})
		return
	}

	if err := h.orch.DeleteHistory(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles POST /api/clear-history
func (h *HistoryHandler) Clear(c *gin.Context) {
	n, err := h.orch.ClearHistory()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Export handles GET /api/export-history
func (h *HistoryHandler) Export(c *gin.Context) {
	data, err := h.orch.ExportHistory()
	if err != nil {
		h.logger.Error("Failed to export history", zap.Error(err))
		respondError(c, err)
		return
	}

	filename := "download-history-" + h.now().Format("2006-01-02") + ".json"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Stats handles GET /api/v1/history/stats
func (h *HistoryHandler) Stats(c *gin.Context) {
	stats, err := h.orch.HistoryStats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func nonNil(records []*domain.HistoryRecord) []*domain.HistoryRecord {
	if records == nil {
		return []*domain.HistoryRecord{}
	}
	return records
}
