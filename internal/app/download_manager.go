package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
	"github.com/yourusername/media-queue-go/internal/observability"
)

const errCancelled = "cancelled"

// friendlyErrors maps capability output to messages shown to users. First match wins.
var friendlyErrors = []struct {
	needle  string
	message string
}{
	{"Video unavailable", "video is unavailable or has been removed"},
	{"Private video", "video is private"},
	{"Sign in", "video requires sign-in"},
	{"HTTP Error 403", "access to this video is forbidden"},
	{"HTTP Error 404", "video not found"},
}

// DownloadManager runs one download at a time against the fetcher capability
type DownloadManager struct {
	fetcher domain.Fetcher
	config  *domain.DownloadConfig
	logger  *zap.Logger
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(fetcher domain.Fetcher, config *domain.DownloadConfig, logger *zap.Logger) *DownloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadManager{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Run downloads job and always returns exactly one terminal outcome.
// Progress, status and info events for the job are handed to sink as they happen.
func (dm *DownloadManager) Run(ctx context.Context, job *domain.Job, sink ProgressSink) (outcome domain.Outcome) {
	ctx, span := observability.StartSpan(ctx, "download.run",
		attribute.String("job.id", job.ID),
		attribute.String("job.url", job.URL),
		attribute.String("job.format", string(job.Format)),
		attribute.String("job.quality", string(job.Quality)))
	defer span.End()

	if sink == nil {
		sink = func(domain.Event) {}
	}

	outcome = domain.Outcome{
		Title:    job.DisplayTitle(),
		Platform: domain.DetectPlatform(job.URL),
		FileSize: "N/A",
		Duration: "N/A",
	}

	defer func() {
		if r := recover(); r != nil {
			dm.logger.Error("Download panicked",
				zap.String("id", job.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			outcome.Success = false
			outcome.ErrorMsg = fmt.Sprintf("internal error: %v", r)
		}
		span.SetAttributes(attribute.Bool("download.success", outcome.Success))
		if outcome.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, outcome.ErrorMsg)
		}
	}()

	dm.logger.Info("Processing download",
		zap.String("id", job.ID),
		zap.String("url", job.URL),
		zap.String("format", string(job.Format)),
		zap.String("quality", string(job.Quality)))

	tracker := newProgressTracker(job, sink)
	tracker.status("Fetching video info...")

	info, err := dm.fetcher.Probe(ctx, job.URL)
	if err != nil {
		return dm.fail(ctx, job, outcome, err)
	}
	if info != nil {
		if info.Title != "" {
			outcome.Title = info.Title
		}
		if info.Duration != "" {
			outcome.Duration = info.Duration
		}
	}
	sink(domain.Event{
		Kind:     domain.EventJobInfo,
		JobID:    job.ID,
		Title:    outcome.Title,
		Duration: outcome.Duration,
		Message:  "Starting download: " + outcome.Title,
	})

	tracker.status(msgDownloading)
	req := domain.FetchRequest{
		JobID:   job.ID,
		URL:     job.URL,
		Format:  job.Format,
		Quality: job.Quality,
	}

	maxRetries := dm.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var result *domain.FetchResult
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			dm.logger.Info("Retrying download",
				zap.String("id", job.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries))

			select {
			case <-time.After(dm.config.RetryDelay):
			case <-ctx.Done():
				return dm.fail(ctx, job, outcome, ctx.Err())
			}
			tracker.status(fmt.Sprintf("Retrying (%d/%d)...", attempt, maxRetries))
		}

		result, err = dm.fetcher.Fetch(ctx, req, tracker.observe)
		if err == nil {
			break
		}
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error())))
		dm.logger.Warn("Download attempt failed",
			zap.String("id", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return dm.fail(ctx, job, outcome, err)
	}

	tracker.complete()
	outcome.Success = true
	if result != nil {
		outcome.FileSizeBytes = result.SizeBytes
	}
	outcome.FileSize = formatSize(outcome.FileSizeBytes)

	dm.logger.Info("Download completed",
		zap.String("id", job.ID),
		zap.String("url", job.URL),
		zap.String("title", outcome.Title),
		zap.String("file_size", outcome.FileSize))
	return outcome
}

// Preview resolves metadata for url without touching any queue state
func (dm *DownloadManager) Preview(ctx context.Context, url string) (*domain.VideoInfo, error) {
	if err := domain.ValidateURL(url, dm.config.AllowedSchemes); err != nil {
		return nil, err
	}

	if dm.config.PreviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dm.config.PreviewTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "download.preview", attribute.String("job.url", url))
	defer span.End()

	info, err := dm.fetcher.Probe(ctx, url)
	if err != nil {
		msg := simplifyError(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "timed out fetching video info"
		}
		span.SetStatus(codes.Error, msg)
		dm.logger.Warn("Preview failed", zap.String("url", url), zap.Error(err))
		return nil, &domain.CapabilityError{Message: msg, Err: err}
	}

	info.URL = url
	if info.Platform == "" {
		info.Platform = domain.DetectPlatform(url)
	}
	if info.Formats == nil {
		info.Formats = []domain.FormatSummary{}
	}
	return info, nil
}

func (dm *DownloadManager) fail(ctx context.Context, job *domain.Job, outcome domain.Outcome, err error) domain.Outcome {
	outcome.Success = false
	if ctx.Err() != nil {
		outcome.ErrorMsg = errCancelled
	} else {
		outcome.ErrorMsg = simplifyError(err)
	}

	dm.logger.Error("Download failed",
		zap.String("id", job.ID),
		zap.String("url", job.URL),
		zap.String("reason", outcome.ErrorMsg),
		zap.Error(err))
	return outcome
}

// simplifyError reduces capability noise to a short user-facing message
func simplifyError(err error) string {
	if err == nil {
		return ""
	}
	var capErr *domain.CapabilityError
	if errors.As(err, &capErr) && capErr.Message != "" {
		return capErr.Message
	}

	text := err.Error()
	for _, fe := range friendlyErrors {
		if strings.Contains(text, fe.needle) {
			return fe.message
		}
	}
	return text
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "N/A"
	}
	return humanize.Bytes(uint64(bytes))
}
