package handlers

import (
	"github.com/yourusername/media-queue-go/internal/domain"
)

// Frame is one JSON message on the realtime channel
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Outbound event names
const (
	frameConnected       = "connected"
	frameQueueUpdated    = "queue_updated"
	frameDownloadStarted = "download_started"
	frameStatus          = "status"
	frameInfo            = "info"
	frameProgress        = "progress"
	frameItemProgress    = "queue_item_progress"
	frameDone            = "done"
	frameItemCompleted   = "item_completed"
	frameAllComplete     = "all_downloads_complete"
	frameError           = "error"
	frameVideoInfo       = "video_info"
)

type statusPayload struct {
	Msg     string `json:"msg"`
	Percent string `json:"percent,omitempty"`
}

type infoPayload struct {
	Title    string `json:"title,omitempty"`
	Duration string `json:"duration,omitempty"`
	Msg      string `json:"msg"`
}

type progressPayload struct {
	Percent string `json:"percent"`
	domain.ProgressUpdate
}

type itemProgressPayload struct {
	ID      string `json:"id"`
	Percent string `json:"percent"`
}

type donePayload struct {
	Msg      string `json:"msg"`
	FileSize string `json:"file_size,omitempty"`
	Percent  string `json:"percent"`
}

type itemCompletedPayload struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Title   string `json:"title"`
}

type errorPayload struct {
	Msg string `json:"msg"`
	ID  string `json:"id,omitempty"`
}

type videoInfoPayload struct {
	*domain.VideoInfo
	URL   string `json:"url"`
	Index int    `json:"index"`
	Error string `json:"error,omitempty"`
}

// eventFrames renders one orchestrator event as the frames clients expect
func eventFrames(ev domain.Event) []Frame {
	switch ev.Kind {
	case domain.EventQueueChanged:
		snap := domain.QueueSnapshot{Jobs: []*domain.Job{}}
		if ev.Snapshot != nil {
			snap = *ev.Snapshot
			if snap.Jobs == nil {
				snap.Jobs = []*domain.Job{}
			}
		}
		return []Frame{{Event: frameQueueUpdated, Data: snap}}

	case domain.EventJobStarted:
		return []Frame{{Event: frameDownloadStarted, Data: map[string]string{"id": ev.JobID, "url": ev.URL}}}

	case domain.EventJobStatus:
		payload := statusPayload{Msg: ev.Message}
		if ev.Percent != nil {
			payload.Percent = domain.FormatPercent(*ev.Percent)
		}
		return []Frame{{Event: frameStatus, Data: payload}}

	case domain.EventJobInfo:
		return []Frame{{Event: frameInfo, Data: infoPayload{Title: ev.Title, Duration: ev.Duration, Msg: ev.Message}}}

	case domain.EventJobProgress:
		var percent string
		if ev.Percent != nil {
			percent = domain.FormatPercent(*ev.Percent)
		}
		payload := progressPayload{Percent: percent}
		if ev.Progress != nil {
			payload.ProgressUpdate = *ev.Progress
		}
		if payload.Message == "" {
			payload.Message = ev.Message
		}
		return []Frame{
			{Event: frameProgress, Data: payload},
			{Event: frameItemProgress, Data: itemProgressPayload{ID: ev.JobID, Percent: percent}},
		}

	case domain.EventJobCompleted:
		completed := Frame{Event: frameItemCompleted, Data: itemCompletedPayload{ID: ev.JobID, Success: ev.Success, Title: ev.Title}}
		if !ev.Success {
			return []Frame{completed}
		}
		fileSize := ev.FileSize
		if fileSize == "N/A" {
			fileSize = ""
		}
		return []Frame{
			{Event: frameDone, Data: donePayload{Msg: ev.Message, FileSize: fileSize, Percent: "100%"}},
			completed,
		}

	case domain.EventAllComplete:
		return []Frame{{Event: frameAllComplete, Data: struct{}{}}}

	case domain.EventError:
		return []Frame{{Event: frameError, Data: errorPayload{Msg: ev.Message, ID: ev.JobID}}}
	}
	return nil
}
