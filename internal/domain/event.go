package domain

import (
	"fmt"
	"time"
)

// EventKind enumerates everything the orchestrator reports to observers
type EventKind string

const (
	EventQueueChanged EventKind = "queue_changed"
	EventJobStarted   EventKind = "job_started"
	EventJobStatus    EventKind = "job_status"
	EventJobProgress  EventKind = "job_progress"
	EventJobInfo      EventKind = "job_info"
	EventJobCompleted EventKind = "job_completed"
	EventAllComplete  EventKind = "all_complete"
	EventError        EventKind = "error"
)

// QueueSnapshot is a point-in-time copy of the queue
type QueueSnapshot struct {
	Jobs     []*Job `json:"queue"`
	Draining bool   `json:"draining"`
}

// ProgressUpdate is one normalised progress report for the active job
type ProgressUpdate struct {
	Percent    float64 `json:"-"`
	Message    string  `json:"msg,omitempty"`
	Speed      string  `json:"speed,omitempty"`
	ETA        string  `json:"eta,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	Downloaded string  `json:"downloaded,omitempty"`
	Total      string  `json:"total,omitempty"`
}

// Event is one observable fact. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	JobID     string
	URL       string
	Snapshot  *QueueSnapshot
	Message   string
	Percent   *float64
	Progress  *ProgressUpdate
	Title     string
	Duration  string
	Success   bool
	FileSize  string
	Timestamp time.Time
}

// Outcome is the terminal result of one download run
type Outcome struct {
	Success       bool
	Title         string
	Platform      string
	FileSize      string
	FileSizeBytes int64
	Duration      string
	ErrorMsg      string
}

// FormatPercent renders a percent the way observers expect it ("42.5%", "100%")
func FormatPercent(p float64) string {
	if p >= 100 {
		return "100%"
	}
	if p <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", p)
}
