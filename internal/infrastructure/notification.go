package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/media-queue-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications about queue progress
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", "--app-name=media-queue", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}
	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyDownloadStarted sends notification when a job starts
func (n *NotificationService) NotifyDownloadStarted(job *domain.Job) {
	n.Send("Download Started", truncateString(job.DisplayTitle(), 60))
}

// NotifyDownloadCompleted sends notification when a job succeeds
func (n *NotificationService) NotifyDownloadCompleted(job *domain.Job, outcome domain.Outcome) {
	msg := truncateString(outcome.Title, 60)
	if outcome.FileSize != "" {
		msg += " (" + outcome.FileSize + ")"
	}
	n.Send("Download Completed", msg)
}

// NotifyDownloadFailed sends notification when a job fails
func (n *NotificationService) NotifyDownloadFailed(job *domain.Job, outcome domain.Outcome) {
	n.Send("Download Failed", fmt.Sprintf("%s: %s", truncateString(job.DisplayTitle(), 40), outcome.ErrorMsg))
}

// NotifyQueueEmpty sends notification when the queue drained
func (n *NotificationService) NotifyQueueEmpty() {
	n.Send("Queue Empty", "All downloads completed")
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
