package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
	"github.com/yourusername/media-queue-go/pkg/logger"
)

const progressInterval = 500 * time.Millisecond

// previewHeights are the quality tiers offered in previews
var previewHeights = []int{2160, 1440, 1080, 720, 480, 360}

// YTDLPFetcher implements domain.Fetcher on top of yt-dlp
type YTDLPFetcher struct {
	config      *domain.DownloadConfig
	multiLogger *logger.MultiLogger
	logger      *zap.Logger
}

// NewYTDLPFetcher creates a new yt-dlp backed fetcher. multiLogger may be nil.
func NewYTDLPFetcher(config *domain.DownloadConfig, multiLogger *logger.MultiLogger, log *zap.Logger) *YTDLPFetcher {
	return &YTDLPFetcher{
		config:      config,
		multiLogger: multiLogger,
		logger:      log,
	}
}

// newCommand returns a command with the options shared by probe and fetch
func (f *YTDLPFetcher) newCommand() *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist()
	if f.config.YTDLPBinary != "" {
		cmd.SetExecutable(f.config.YTDLPBinary)
	}
	if f.config.CookieFile != "" {
		if _, err := os.Stat(f.config.CookieFile); err == nil {
			cmd.Cookies(f.config.CookieFile)
		}
	}
	return cmd
}

// Probe resolves metadata without downloading
func (f *YTDLPFetcher) Probe(ctx context.Context, url string) (*domain.VideoInfo, error) {
	res, err := f.newCommand().
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, url)
	if err != nil {
		return nil, withStderr(err, res)
	}

	info, err := parseProbeOutput(res.Stdout)
	if err != nil {
		return nil, err
	}
	info.URL = url
	info.Platform = domain.DetectPlatform(url)
	return info, nil
}

// Fetch downloads the media described by req
func (f *YTDLPFetcher) Fetch(ctx context.Context, req domain.FetchRequest, onProgress func(domain.FetchProgress)) (*domain.FetchResult, error) {
	cmd := f.newCommand().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(f.config.BaseDir, f.outputTemplate()))
	applyFormat(cmd, req.Format, req.Quality)

	tracker := newFileTracker()
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		p := toFetchProgress(update)
		tracker.observe(p)
		if onProgress != nil {
			onProgress(p)
		}
	})

	f.logger.Debug("Starting yt-dlp",
		zap.String("id", req.JobID),
		zap.String("url", req.URL),
		zap.String("format", string(req.Format)))

	res, err := cmd.Run(ctx, req.URL)
	f.appendDownloadLog(req, res, err)
	if err != nil {
		return nil, withStderr(err, res)
	}

	files, size := tracker.result()
	return &domain.FetchResult{Files: files, SizeBytes: size}, nil
}

func (f *YTDLPFetcher) outputTemplate() string {
	if f.config.OutputTemplate != "" {
		return f.config.OutputTemplate
	}
	return "%(title)s.%(ext)s"
}

// applyFormat sets the format selection for the requested container
func applyFormat(cmd *ytdlp.Command, format domain.Format, quality domain.Quality) {
	if format == domain.FormatMP3 {
		cmd.Format("bestaudio/best").
			ExtractAudio().
			AudioFormat("mp3").
			AudioQuality("320K")
		return
	}
	if format == domain.FormatAuto {
		cmd.Format(autoSelector(quality)).MergeOutputFormat("mp4")
		return
	}
	cmd.Format(formatSelector(quality)).MergeOutputFormat("mp4")
}

// formatSelector builds the mp4 selector, capped at the requested height
func formatSelector(quality domain.Quality) string {
	if quality == "" || quality == domain.QualityBest {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"
	}
	h := string(quality)
	return fmt.Sprintf(
		"bestvideo[height<=%[1]s][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%[1]s]+bestaudio/best[height<=%[1]s]/best",
		h)
}

// autoSelector has no container preference; the merge step produces mp4
func autoSelector(quality domain.Quality) string {
	if quality == "" || quality == domain.QualityBest {
		return "bestvideo+bestaudio/best"
	}
	return fmt.Sprintf("bestvideo[height<=%[1]s]+bestaudio/best[height<=%[1]s]/best", string(quality))
}

func toFetchProgress(update ytdlp.ProgressUpdate) domain.FetchProgress {
	p := domain.FetchProgress{
		Phase:           domain.PhaseDownloading,
		Filename:        update.Filename,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}

	switch string(update.Status) {
	case "finished":
		p.Phase = domain.PhaseFinished
	case "post_processing":
		p.Phase = domain.PhasePostProcessing
	}

	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			p.BytesPerSecond = float64(update.DownloadedBytes) / elapsed
		}
	}
	if eta := update.ETA(); eta > 0 {
		p.ETASeconds = int(eta.Seconds())
	}
	return p
}

// fileTracker remembers the files yt-dlp reported and their sizes
type fileTracker struct {
	mu    sync.Mutex
	order []string
	sizes map[string]int64
}

func newFileTracker() *fileTracker {
	return &fileTracker{sizes: make(map[string]int64)}
}

func (t *fileTracker) observe(p domain.FetchProgress) {
	if p.Filename == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sizes[p.Filename]; !ok {
		t.order = append(t.order, p.Filename)
	}
	if p.TotalBytes > t.sizes[p.Filename] {
		t.sizes[p.Filename] = p.TotalBytes
	}
}

func (t *fileTracker) result() ([]string, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for _, name := range t.order {
		total += t.sizes[name]
	}
	return append([]string(nil), t.order...), total
}

// appendDownloadLog writes the command line and its output to today's download log
func (f *YTDLPFetcher) appendDownloadLog(req domain.FetchRequest, res *ytdlp.Result, runErr error) {
	if f.multiLogger == nil || res == nil {
		return
	}
	file, err := f.multiLogger.OpenDownloadLog()
	if err != nil {
		f.logger.Warn("Failed to open download log", zap.Error(err))
		return
	}
	defer file.Close()
	writeDownloadLog(file, req.JobID, res, runErr)
}

func writeDownloadLog(w io.Writer, jobID string, res *ytdlp.Result, runErr error) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n", ts, jobID)
	fmt.Fprintf(w, "$ %s\n", ShellEscapeCommand(res.Executable, res.Args...))
	if out := strings.TrimSpace(res.Stdout); out != "" {
		fmt.Fprintln(w, out)
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		fmt.Fprintln(w, errOut)
	}
	status := "SUCCESS"
	msg := "done"
	if runErr != nil {
		status = "FAILED"
		msg = runErr.Error()
	}
	fmt.Fprintf(w, "[%s] %s: %s\n=== END ===\n", ts, status, msg)
}

// withStderr appends the last stderr line so error messages carry yt-dlp's reason
func withStderr(err error, res *ytdlp.Result) error {
	if res == nil {
		return err
	}
	lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return fmt.Errorf("%w: %s", err, line)
		}
	}
	return err
}

// probeMetadata is the subset of yt-dlp's info JSON used for previews
type probeMetadata struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	ViewCount float64 `json:"view_count"`
	Formats   []struct {
		Height         float64 `json:"height"`
		VCodec         string  `json:"vcodec"`
		Filesize       float64 `json:"filesize"`
		FilesizeApprox float64 `json:"filesize_approx"`
	} `json:"formats"`
}

func parseProbeOutput(stdout string) (*domain.VideoInfo, error) {
	var meta probeMetadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}

	seconds := int(meta.Duration)
	info := &domain.VideoInfo{
		Title:           meta.Title,
		Thumbnail:       meta.Thumbnail,
		DurationSeconds: seconds,
		Duration:        domain.FormatDuration(seconds),
		ViewCount:       int64(meta.ViewCount),
		Formats:         []domain.FormatSummary{},
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}

	// largest known size per height tier
	best := make(map[int]float64)
	for _, f := range meta.Formats {
		if f.Height <= 0 || f.VCodec == "none" {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		h := int(f.Height)
		if cur, ok := best[h]; !ok || size > cur {
			best[h] = size
		}
	}

	for _, h := range previewHeights {
		size, ok := best[h]
		if !ok {
			continue
		}
		summary := domain.FormatSummary{Quality: strconv.Itoa(h) + "p", Filesize: "N/A"}
		if size > 0 {
			summary.Filesize = humanize.Bytes(uint64(size))
		}
		info.Formats = append(info.Formats, summary)
	}
	return info, nil
}
