package domain

import "context"

//go:generate mockgen -source=downloader.go -destination=mocks/mock_downloader.go -package=mocks

// Fetcher is the external media download capability
type Fetcher interface {
	// Probe resolves metadata without downloading anything
	Probe(ctx context.Context, url string) (*VideoInfo, error)

	// Fetch downloads the media, reporting raw progress through onProgress
	Fetch(ctx context.Context, req FetchRequest, onProgress func(FetchProgress)) (*FetchResult, error)
}

// FetchRequest describes one download
type FetchRequest struct {
	JobID   string
	URL     string
	Format  Format
	Quality Quality
}

// FetchPhase is the capability-reported state of the current file
type FetchPhase string

const (
	PhaseDownloading    FetchPhase = "downloading"
	PhaseFinished       FetchPhase = "finished"
	PhasePostProcessing FetchPhase = "post_processing"
)

// FetchProgress is one raw progress report from the capability
type FetchProgress struct {
	Phase           FetchPhase
	Filename        string
	DownloadedBytes int64
	TotalBytes      int64
	BytesPerSecond  float64
	ETASeconds      int
}

// FetchResult describes the produced files
type FetchResult struct {
	Files     []string
	SizeBytes int64
}

// VideoInfo is the metadata used for previews and history
type VideoInfo struct {
	URL             string          `json:"url"`
	Title           string          `json:"title"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	Duration        string          `json:"duration"`
	ViewCount       int64           `json:"view_count"`
	Platform        string          `json:"platform"`
	Formats         []FormatSummary `json:"formats"`
}

// FormatSummary is one quality option offered for a video
type FormatSummary struct {
	Quality  string `json:"quality"`
	Filesize string `json:"filesize"`
}
