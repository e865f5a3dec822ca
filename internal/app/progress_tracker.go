package app

import (
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/media-queue-go/internal/domain"
)

// ProgressSink receives the per-job events produced while a download runs
type ProgressSink func(domain.Event)

const (
	msgDownloading = "Downloading..."
	msgProcessing  = "Processing..."
	msgComplete    = "Download complete"
)

// progressTracker turns raw capability reports into monotonic overall progress.
// Separate video and audio streams are averaged over the expected file count.
type progressTracker struct {
	mu       sync.Mutex
	jobID    string
	expected int
	files    map[string]float64
	percent  float64
	sink     ProgressSink
}

func newProgressTracker(job *domain.Job, sink ProgressSink) *progressTracker {
	expected := 1
	if job.Format != domain.FormatMP3 {
		expected = 2
	}
	return &progressTracker{
		jobID:    job.ID,
		expected: expected,
		files:    make(map[string]float64),
		sink:     sink,
	}
}

// status reports a phase change at the current percent
func (t *progressTracker) status(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.percent
	t.sink(domain.Event{
		Kind:    domain.EventJobStatus,
		JobID:   t.jobID,
		Message: msg,
		Percent: &p,
	})
}

// observe is handed to the fetcher as its progress callback
func (t *progressTracker) observe(fp domain.FetchProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := fp.Filename
	if key == "" {
		key = "-"
	}
	update := domain.ProgressUpdate{}
	if fp.Filename != "" {
		update.Filename = filepath.Base(fp.Filename)
	}

	switch fp.Phase {
	case domain.PhaseFinished:
		t.files[key] = 100
	case domain.PhasePostProcessing:
		t.raise(100)
	default:
		if fp.TotalBytes > 0 {
			t.files[key] = clampPercent(float64(fp.DownloadedBytes) / float64(fp.TotalBytes) * 100)
		}
		if fp.BytesPerSecond > 0 {
			update.Speed = humanize.Bytes(uint64(fp.BytesPerSecond)) + "/s"
		}
		if fp.ETASeconds > 0 {
			update.ETA = domain.FormatDuration(fp.ETASeconds)
		}
		if fp.DownloadedBytes > 0 {
			update.Downloaded = humanize.Bytes(uint64(fp.DownloadedBytes))
		}
		if fp.TotalBytes > 0 {
			update.Total = humanize.Bytes(uint64(fp.TotalBytes))
		}
	}

	t.raise(t.overall())
	update.Message = msgDownloading
	if t.percent >= 100 {
		update.Message = msgProcessing
	}
	t.emit(update)
}

// complete guarantees a terminal 100% report
func (t *progressTracker) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.percent = 100
	t.emit(domain.ProgressUpdate{Message: msgComplete})
}

func (t *progressTracker) emit(update domain.ProgressUpdate) {
	p := t.percent
	update.Percent = p
	t.sink(domain.Event{
		Kind:     domain.EventJobProgress,
		JobID:    t.jobID,
		Message:  update.Message,
		Percent:  &p,
		Progress: &update,
	})
}

func (t *progressTracker) overall() float64 {
	n := t.expected
	if len(t.files) > n {
		n = len(t.files)
	}
	var sum float64
	for _, p := range t.files {
		sum += p
	}
	return clampPercent(sum / float64(n))
}

func (t *progressTracker) raise(p float64) {
	if p > t.percent {
		t.percent = clampPercent(p)
	}
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
