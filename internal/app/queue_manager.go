package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
	"github.com/yourusername/media-queue-go/pkg/logger"
)

// Notifier reports queue milestones outside the process
type Notifier interface {
	NotifyDownloadStarted(job *domain.Job)
	NotifyDownloadCompleted(job *domain.Job, outcome domain.Outcome)
	NotifyDownloadFailed(job *domain.Job, outcome domain.Outcome)
	NotifyQueueEmpty()
}

type nopNotifier struct{}

func (nopNotifier) NotifyDownloadStarted(*domain.Job)                   {}
func (nopNotifier) NotifyDownloadCompleted(*domain.Job, domain.Outcome) {}
func (nopNotifier) NotifyDownloadFailed(*domain.Job, domain.Outcome)    {}
func (nopNotifier) NotifyQueueEmpty()                                   {}

// Rejection is one submitted URL that was not queued
type Rejection struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// EnqueueResult reports which URLs became jobs
type EnqueueResult struct {
	IDs      []string    `json:"ids"`
	Rejected []Rejection `json:"rejected"`
}

type drainStep int

const (
	stepRun drainStep = iota
	stepStopped
	stepDrained
)

// QueueManager owns the in-memory queue and drains it one job at a time
type QueueManager struct {
	worker      *DownloadManager
	history     domain.HistoryRepository
	broadcaster *Broadcaster
	notifier    Notifier
	config      *domain.DownloadConfig
	logs        *logger.LoggerAdapter

	mu            sync.Mutex
	jobs          []*domain.Job
	draining      bool
	stopRequested bool
	closed        bool
	activeCancel  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	worker *DownloadManager,
	history domain.HistoryRepository,
	broadcaster *Broadcaster,
	notifier Notifier,
	config *domain.DownloadConfig,
	logs *logger.LoggerAdapter,
) *QueueManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logs == nil {
		logs = logger.NewNopAdapter()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueManager{
		worker:      worker,
		history:     history,
		broadcaster: broadcaster,
		notifier:    notifier,
		config:      config,
		logs:        logs,
		jobs:        make([]*domain.Job, 0),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue appends one pending job per acceptable URL, in submission order.
// Nothing changes when the format or quality is invalid or no URL is acceptable.
func (qm *QueueManager) Enqueue(urls []string, format, quality string) (*EnqueueResult, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) == 0 {
		return nil, domain.NewValidationError("urls", "no URLs provided")
	}

	f, err := domain.ParseFormat(format, domain.Format(qm.config.DefaultFormat))
	if err != nil {
		return nil, err
	}
	q, err := domain.ParseQuality(quality, domain.Quality(qm.config.DefaultQuality))
	if err != nil {
		return nil, err
	}

	result := &EnqueueResult{IDs: []string{}, Rejected: []Rejection{}}
	jobs := make([]*domain.Job, 0, len(cleaned))
	for _, u := range cleaned {
		if err := domain.ValidateURL(u, qm.config.AllowedSchemes); err != nil {
			result.Rejected = append(result.Rejected, Rejection{URL: u, Reason: err.Error()})
			qm.logs.General().Warn("Rejected URL", zap.String("url", u), zap.Error(err))
			continue
		}
		job := domain.NewJob(u, f, q)
		jobs = append(jobs, job)
		result.IDs = append(result.IDs, job.ID)
	}
	if len(jobs) == 0 {
		return result, domain.NewValidationError("urls", "no valid URLs provided")
	}

	qm.mu.Lock()
	qm.jobs = append(qm.jobs, jobs...)
	qm.publishSnapshotLocked()
	qm.mu.Unlock()

	for _, job := range jobs {
		qm.logs.LogQueueEvent("download_added",
			zap.String("id", job.ID),
			zap.String("url", job.URL),
			zap.String("format", string(job.Format)),
			zap.String("quality", string(job.Quality)))
	}
	return result, nil
}

// Remove drops a pending job. It reports false when no job has the id.
func (qm *QueueManager) Remove(id string) (bool, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	idx := qm.indexLocked(id)
	if idx < 0 {
		return false, nil
	}
	job := qm.jobs[idx]
	if !job.IsPending() {
		return false, &domain.InvalidStateError{JobID: id, Status: job.Status, Op: "remove"}
	}

	job.Status = domain.StatusRemoved
	qm.jobs = slices.Delete(qm.jobs, idx, idx+1)
	qm.publishSnapshotLocked()
	qm.logs.LogQueueEvent("download_removed", zap.String("id", id), zap.String("url", job.URL))
	return true, nil
}

// Clear drops every pending job and leaves the active one alone
func (qm *QueueManager) Clear() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	kept := make([]*domain.Job, 0, 1)
	removed := 0
	for _, job := range qm.jobs {
		if job.IsPending() {
			job.Status = domain.StatusRemoved
			removed++
			continue
		}
		kept = append(kept, job)
	}
	qm.jobs = kept
	qm.publishSnapshotLocked()
	qm.logs.LogQueueEvent("queue_cleared", zap.Int("removed", removed))
	return removed
}

// StartDraining begins processing pending jobs. It reports false when already
// draining, in which case an outstanding stop request is withdrawn.
func (qm *QueueManager) StartDraining() bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if qm.closed {
		return false
	}
	if qm.draining {
		qm.stopRequested = false
		return false
	}

	qm.draining = true
	qm.stopRequested = false
	qm.wg.Add(1)
	go qm.drain()

	qm.publishSnapshotLocked()
	qm.logs.LogQueueEvent("queue_started", zap.Int("pending", qm.pendingCountLocked()))
	return true
}

// StopDraining asks the drain loop to stop after the in-flight job
func (qm *QueueManager) StopDraining() bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if !qm.draining || qm.stopRequested {
		return false
	}
	qm.stopRequested = true
	qm.logs.LogQueueEvent("queue_stop_requested")
	return true
}

// CancelActive aborts the active job. It still completes, as failed.
func (qm *QueueManager) CancelActive(id string) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	idx := qm.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	job := qm.jobs[idx]
	if !job.IsActive() || qm.activeCancel == nil {
		return &domain.InvalidStateError{JobID: id, Status: job.Status, Op: "cancel"}
	}

	qm.activeCancel()
	qm.logs.LogQueueEvent("download_cancel_requested", zap.String("id", id))
	return nil
}

// Snapshot returns a copy of the queue
func (qm *QueueManager) Snapshot() domain.QueueSnapshot {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.snapshotLocked()
}

// IsDraining reports whether the drain loop is running
func (qm *QueueManager) IsDraining() bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.draining
}

// Subscribe registers an observer whose first event is the current snapshot
func (qm *QueueManager) Subscribe() *Subscription {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	snap := qm.snapshotLocked()
	return qm.broadcaster.SubscribeWith(domain.Event{
		Kind:     domain.EventQueueChanged,
		Snapshot: &snap,
	})
}

// Unsubscribe removes an observer
func (qm *QueueManager) Unsubscribe(sub *Subscription) {
	qm.broadcaster.Unsubscribe(sub)
}

// Wait blocks until the drain loop exits
func (qm *QueueManager) Wait() {
	qm.wg.Wait()
}

// Shutdown stops draining, aborts the active job and waits for the loop to exit
func (qm *QueueManager) Shutdown(ctx context.Context) error {
	qm.mu.Lock()
	qm.closed = true
	if qm.draining {
		qm.stopRequested = true
	}
	qm.mu.Unlock()
	qm.cancel()

	done := make(chan struct{})
	go func() {
		qm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (qm *QueueManager) drain() {
	defer qm.wg.Done()

	for {
		job, jobCtx, cancel, step := qm.promoteNext()
		switch step {
		case stepStopped:
			return
		case stepDrained:
			qm.notifier.NotifyQueueEmpty()
			return
		}

		qm.notifier.NotifyDownloadStarted(job)
		outcome := qm.worker.Run(jobCtx, job, qm.sinkFor(job.ID))
		cancel()
		qm.archive(job, outcome)
	}
}

// promoteNext makes the first pending job active, or ends the drain cycle
func (qm *QueueManager) promoteNext() (*domain.Job, context.Context, context.CancelFunc, drainStep) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	stop := func() (*domain.Job, context.Context, context.CancelFunc, drainStep) {
		qm.draining = false
		qm.stopRequested = false
		qm.publishSnapshotLocked()
		qm.logs.LogQueueEvent("queue_stopped", zap.Int("pending", qm.pendingCountLocked()))
		return nil, nil, nil, stepStopped
	}
	if qm.ctx.Err() != nil {
		return stop()
	}

	var next *domain.Job
	for _, job := range qm.jobs {
		if job.IsPending() {
			next = job
			break
		}
	}
	// an exhausted queue completes the cycle even when a stop was pending
	if next == nil {
		qm.draining = false
		qm.stopRequested = false
		qm.publishSnapshotLocked()
		qm.publishLocked(domain.Event{Kind: domain.EventAllComplete})
		qm.logs.LogQueueEvent("queue_drained")
		return nil, nil, nil, stepDrained
	}
	if qm.stopRequested {
		return stop()
	}

	next.MarkActive()
	ctx, cancel := context.WithCancel(qm.ctx)
	qm.activeCancel = cancel

	qm.publishSnapshotLocked()
	qm.publishLocked(domain.Event{
		Kind:  domain.EventJobStarted,
		JobID: next.ID,
		URL:   next.URL,
	})
	qm.logs.LogQueueEvent("download_started",
		zap.String("id", next.ID),
		zap.String("url", next.URL))
	return next.Clone(), ctx, cancel, stepRun
}

// archive records the outcome, then retires the job from the queue
func (qm *QueueManager) archive(job *domain.Job, outcome domain.Outcome) {
	record := newHistoryRecord(job, outcome)
	storeErr := qm.history.Create(record)
	if storeErr != nil {
		qm.logs.LogAppError("Failed to record download history",
			zap.String("id", job.ID),
			zap.String("url", job.URL),
			zap.Error(storeErr))
	}

	qm.mu.Lock()
	qm.activeCancel = nil
	if idx := qm.indexLocked(job.ID); idx >= 0 {
		live := qm.jobs[idx]
		if outcome.Success {
			live.MarkSucceeded()
		} else {
			live.MarkFailed()
		}
		qm.jobs = slices.Delete(qm.jobs, idx, idx+1)
	}

	if storeErr != nil {
		qm.publishLocked(domain.Event{
			Kind:    domain.EventError,
			JobID:   job.ID,
			Message: "failed to save download history",
		})
	}

	completed := domain.Event{
		Kind:     domain.EventJobCompleted,
		JobID:    job.ID,
		URL:      job.URL,
		Success:  outcome.Success,
		Title:    outcome.Title,
		FileSize: outcome.FileSize,
		Duration: outcome.Duration,
		Message:  outcome.ErrorMsg,
	}
	if outcome.Success {
		completed.Message = "Download complete: " + outcome.Title
	}
	qm.publishLocked(completed)
	if !outcome.Success {
		qm.publishLocked(domain.Event{
			Kind:    domain.EventError,
			JobID:   job.ID,
			Message: outcome.ErrorMsg,
		})
	}
	qm.publishSnapshotLocked()
	qm.mu.Unlock()

	if outcome.Success {
		qm.logs.LogQueueEvent("download_completed",
			zap.String("id", job.ID),
			zap.String("title", outcome.Title),
			zap.String("file_size", outcome.FileSize))
		qm.notifier.NotifyDownloadCompleted(job, outcome)
	} else {
		qm.logs.LogQueueEvent("download_failed",
			zap.String("id", job.ID),
			zap.String("error", outcome.ErrorMsg))
		qm.notifier.NotifyDownloadFailed(job, outcome)
	}
}

// sinkFor relays worker events for one job, keeping the queued copy current
func (qm *QueueManager) sinkFor(id string) ProgressSink {
	return func(ev domain.Event) {
		qm.mu.Lock()
		defer qm.mu.Unlock()

		ev.JobID = id
		var job *domain.Job
		if idx := qm.indexLocked(id); idx >= 0 {
			job = qm.jobs[idx]
		}
		if job == nil {
			qm.publishLocked(ev)
			return
		}

		switch ev.Kind {
		case domain.EventJobProgress, domain.EventJobStatus:
			if ev.Percent != nil {
				job.Progress = domain.FormatPercent(*ev.Percent)
			}
			qm.publishLocked(ev)
		case domain.EventJobInfo:
			job.SetTitle(ev.Title)
			qm.publishLocked(ev)
			qm.publishSnapshotLocked()
		default:
			qm.publishLocked(ev)
		}
	}
}

func (qm *QueueManager) publishLocked(ev domain.Event) {
	qm.broadcaster.Publish(ev)
}

func (qm *QueueManager) publishSnapshotLocked() {
	snap := qm.snapshotLocked()
	qm.publishLocked(domain.Event{
		Kind:     domain.EventQueueChanged,
		Snapshot: &snap,
	})
}

func (qm *QueueManager) snapshotLocked() domain.QueueSnapshot {
	jobs := make([]*domain.Job, len(qm.jobs))
	for i, job := range qm.jobs {
		jobs[i] = job.Clone()
	}
	return domain.QueueSnapshot{Jobs: jobs, Draining: qm.draining}
}

func (qm *QueueManager) indexLocked(id string) int {
	return slices.IndexFunc(qm.jobs, func(j *domain.Job) bool { return j.ID == id })
}

func (qm *QueueManager) pendingCountLocked() int {
	n := 0
	for _, job := range qm.jobs {
		if job.IsPending() {
			n++
		}
	}
	return n
}

func newHistoryRecord(job *domain.Job, outcome domain.Outcome) *domain.HistoryRecord {
	record := &domain.HistoryRecord{
		URL:           job.URL,
		Title:         orDefault(outcome.Title, job.DisplayTitle()),
		Platform:      orDefault(outcome.Platform, domain.DetectPlatform(job.URL)),
		Format:        job.Format,
		Quality:       job.Quality,
		FileSize:      orDefault(outcome.FileSize, "N/A"),
		FileSizeBytes: outcome.FileSizeBytes,
		Duration:      orDefault(outcome.Duration, "N/A"),
		Status:        domain.HistorySuccess,
		DownloadDate:  time.Now(),
	}
	if !outcome.Success {
		msg := outcome.ErrorMsg
		record.Status = domain.HistoryFailed
		record.ErrorMsg = &msg
	}
	return record
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
