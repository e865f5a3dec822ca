package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a queued download
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusActive    JobStatus = "active"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusRemoved   JobStatus = "removed"
)

// Format is the requested output container
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMP3 Format = "mp3"
	// FormatAuto takes the best streams in any codec, merged into mp4
	FormatAuto Format = "auto"
)

// Quality is the requested video height tier for mp4 downloads
type Quality string

const (
	QualityBest Quality = "best"
	Quality2160 Quality = "2160"
	Quality1440 Quality = "1440"
	Quality1080 Quality = "1080"
	Quality720  Quality = "720"
	Quality480  Quality = "480"
	Quality360  Quality = "360"
)

var validQualities = map[Quality]bool{
	QualityBest: true,
	Quality2160: true,
	Quality1440: true,
	Quality1080: true,
	Quality720:  true,
	Quality480:  true,
	Quality360:  true,
}

// Job represents one requested download living in the in-memory queue
type Job struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Format    Format     `json:"format"`
	Quality   Quality    `json:"quality,omitempty"`
	Status    JobStatus  `json:"status"`
	Title     *string    `json:"title"`
	Progress  string     `json:"progress"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// NewJob creates a pending job with a fresh id
func NewJob(rawURL string, format Format, quality Quality) *Job {
	if format == FormatMP3 {
		quality = ""
	}
	return &Job{
		ID:        uuid.New().String(),
		URL:       rawURL,
		Format:    format,
		Quality:   quality,
		Status:    StatusPending,
		Progress:  "0%",
		CreatedAt: time.Now(),
	}
}

// MarkActive promotes the job to the single active slot
func (j *Job) MarkActive() {
	j.Status = StatusActive
	now := time.Now()
	j.StartedAt = &now
}

// MarkSucceeded marks the job as finished successfully
func (j *Job) MarkSucceeded() {
	j.Status = StatusSucceeded
	j.Progress = "100%"
}

// MarkFailed marks the job as finished with an error
func (j *Job) MarkFailed() {
	j.Status = StatusFailed
}

// SetTitle records the resolved title
func (j *Job) SetTitle(title string) {
	if title == "" {
		return
	}
	j.Title = &title
}

// DisplayTitle returns the title when known, the URL otherwise
func (j *Job) DisplayTitle() string {
	if j.Title != nil && *j.Title != "" {
		return *j.Title
	}
	return j.URL
}

// IsPending checks if the job is waiting in the queue
func (j *Job) IsPending() bool {
	return j.Status == StatusPending
}

// IsActive checks if the job is the one being downloaded
func (j *Job) IsActive() bool {
	return j.Status == StatusActive
}

// IsTerminal checks if the job reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed || j.Status == StatusRemoved
}

// Clone returns a copy safe to hand to observers
func (j *Job) Clone() *Job {
	c := *j
	if j.Title != nil {
		t := *j.Title
		c.Title = &t
	}
	if j.StartedAt != nil {
		s := *j.StartedAt
		c.StartedAt = &s
	}
	return &c
}

// ParseFormat validates a requested format, falling back to def when empty
func ParseFormat(s string, def Format) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		if def == "" {
			return FormatMP4, nil
		}
		return def, nil
	}
	switch Format(s) {
	case FormatMP4, FormatMP3, FormatAuto:
		return Format(s), nil
	}
	return "", NewValidationError("format", fmt.Sprintf("unsupported format %q", s))
}

// ParseQuality validates a requested quality tier, falling back to def when empty
func ParseQuality(s string, def Quality) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "p")
	if s == "" {
		if def == "" {
			return Quality1080, nil
		}
		return def, nil
	}
	if !validQualities[Quality(s)] {
		return "", NewValidationError("quality", fmt.Sprintf("unsupported quality %q", s))
	}
	return Quality(s), nil
}

// ValidateURL checks that a submitted URL is absolute and uses an accepted scheme
func ValidateURL(raw string, allowedSchemes []string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewValidationError("url", "url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("url", fmt.Sprintf("malformed url %q", raw))
	}
	if u.Host == "" {
		return NewValidationError("url", fmt.Sprintf("url %q has no host", raw))
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range allowedSchemes {
		if strings.EqualFold(s, scheme) {
			return nil
		}
	}
	return NewValidationError("url", fmt.Sprintf("scheme %q is not accepted", u.Scheme))
}
