package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// HistoryStatus is the recorded outcome of a finished job
type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryFailed  HistoryStatus = "failed"
)

// HistoryRecord is the durable record of one finished download
type HistoryRecord struct {
	ID            int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	URL           string        `json:"url" gorm:"not null"`
	Title         string        `json:"title"`
	Platform      string        `json:"platform" gorm:"index"`
	PlatformIcon  string        `json:"platform_icon" gorm:"-"`
	Format        Format        `json:"format" gorm:"index"`
	Quality       Quality       `json:"quality,omitempty"`
	FileSize      string        `json:"file_size"`
	FileSizeBytes int64         `json:"file_size_bytes"`
	Duration      string        `json:"duration"`
	Status        HistoryStatus `json:"status" gorm:"not null;index"`
	ErrorMsg      *string       `json:"error_msg"`
	DownloadDate  time.Time     `json:"download_date" gorm:"index"`
}

// TableName specifies the table name for GORM
func (HistoryRecord) TableName() string {
	return "download_history"
}

// AfterFind fills the display-only fields after a read
func (h *HistoryRecord) AfterFind(tx *gorm.DB) error {
	h.PlatformIcon = PlatformIcon(h.Platform)
	return nil
}

// HistoryFilter selects history records by outcome or format. One criterion at a time.
type HistoryFilter struct {
	Status HistoryStatus
	Format Format
}

// ParseHistoryFilter parses "", "all", "success", "failed" or a format name
func ParseHistoryFilter(s string) (HistoryFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return HistoryFilter{}, nil
	case string(HistorySuccess):
		return HistoryFilter{Status: HistorySuccess}, nil
	case string(HistoryFailed):
		return HistoryFilter{Status: HistoryFailed}, nil
	case string(FormatMP4):
		return HistoryFilter{Format: FormatMP4}, nil
	case string(FormatMP3):
		return HistoryFilter{Format: FormatMP3}, nil
	case string(FormatAuto):
		return HistoryFilter{Format: FormatAuto}, nil
	}
	return HistoryFilter{}, NewValidationError("filter", "must be one of all, success, failed, mp4, mp3, auto")
}

// HistoryStats summarises the history store
type HistoryStats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	MP4     int64 `json:"mp4"`
	MP3     int64 `json:"mp3"`
	Auto    int64 `json:"auto"`
}
