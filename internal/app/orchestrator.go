package app

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
	"github.com/yourusername/media-queue-go/pkg/logger"
)

// Orchestrator is the single entry point used by the transports
type Orchestrator struct {
	queue     *QueueManager
	downloads *DownloadManager
	history   domain.HistoryRepository
	config    *domain.DownloadConfig
	logs      *logger.LoggerAdapter
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	queue *QueueManager,
	downloads *DownloadManager,
	history domain.HistoryRepository,
	config *domain.DownloadConfig,
	logs *logger.LoggerAdapter,
) *Orchestrator {
	if logs == nil {
		logs = logger.NewNopAdapter()
	}
	return &Orchestrator{
		queue:     queue,
		downloads: downloads,
		history:   history,
		config:    config,
		logs:      logs,
	}
}

// Enqueue queues urls and starts draining when auto start is on
func (o *Orchestrator) Enqueue(urls []string, format, quality string) (*EnqueueResult, error) {
	result, err := o.queue.Enqueue(urls, format, quality)
	if err != nil {
		return result, err
	}
	if o.config.AutoStart {
		o.queue.StartDraining()
	}
	return result, nil
}

// Remove removes a pending job
func (o *Orchestrator) Remove(id string) (bool, error) {
	return o.queue.Remove(id)
}

// Clear removes all pending jobs
func (o *Orchestrator) Clear() int {
	return o.queue.Clear()
}

// StartQueue starts draining
func (o *Orchestrator) StartQueue() bool {
	return o.queue.StartDraining()
}

// StopQueue stops draining after the in-flight job
func (o *Orchestrator) StopQueue() bool {
	return o.queue.StopDraining()
}

// Cancel aborts the active job
func (o *Orchestrator) Cancel(id string) error {
	return o.queue.CancelActive(id)
}

// Preview fetches metadata for url
func (o *Orchestrator) Preview(ctx context.Context, url string) (*domain.VideoInfo, error) {
	return o.downloads.Preview(ctx, url)
}

// Snapshot returns the current queue
func (o *Orchestrator) Snapshot() domain.QueueSnapshot {
	return o.queue.Snapshot()
}

// IsDraining reports whether the queue is being processed
func (o *Orchestrator) IsDraining() bool {
	return o.queue.IsDraining()
}

// Subscribe registers an event observer
func (o *Orchestrator) Subscribe() *Subscription {
	return o.queue.Subscribe()
}

// Unsubscribe removes an event observer
func (o *Orchestrator) Unsubscribe(sub *Subscription) {
	o.queue.Unsubscribe(sub)
}

// ListHistory lists history records matching filter, newest first
func (o *Orchestrator) ListHistory(filter string) ([]*domain.HistoryRecord, error) {
	f, err := domain.ParseHistoryFilter(filter)
	if err != nil {
		return nil, err
	}
	return o.history.List(f)
}

// SearchHistory finds records whose title, url or platform contains query
func (o *Orchestrator) SearchHistory(query string) ([]*domain.HistoryRecord, error) {
	return o.history.Search(query)
}

// DeleteHistory deletes one record
func (o *Orchestrator) DeleteHistory(id int64) error {
	if err := o.history.Delete(id); err != nil {
		return err
	}
	o.logs.General().Info("History record deleted", zap.Int64("id", id))
	return nil
}

// ClearHistory deletes every record
func (o *Orchestrator) ClearHistory() (int64, error) {
	n, err := o.history.DeleteAll()
	if err != nil {
		return 0, err
	}
	o.logs.General().Info("History cleared", zap.Int64("deleted", n))
	return n, nil
}

// ExportHistory renders the whole history as an indented JSON array
func (o *Orchestrator) ExportHistory() ([]byte, error) {
	records, err := o.history.List(domain.HistoryFilter{})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.HistoryRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

// HistoryStats summarises the history store
func (o *Orchestrator) HistoryStats() (*domain.HistoryStats, error) {
	return o.history.GetStats()
}

// Shutdown stops the queue and waits for the drain loop
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.queue.Shutdown(ctx)
}
