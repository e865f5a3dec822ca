package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/media-queue-go/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
download:
  base_dir: /tmp/mq
  max_retries: 2
  retry_delay: 2s
  allowed_schemes: [HTTPS]
  auto_start: true
queue:
  database_path: /tmp/mq/history.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "/tmp/mq", config.Download.BaseDir)
	assert.Equal(t, 2, config.Download.MaxRetries)
	assert.Equal(t, 2*time.Second, config.Download.RetryDelay)
	assert.Equal(t, []string{"https"}, config.Download.AllowedSchemes)
	assert.True(t, config.Download.AutoStart)
	assert.Equal(t, "/tmp/mq/history.db", config.Queue.DatabasePath)

	// untouched keys keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Download.PreviewTimeout)
	assert.Equal(t, 256, config.Queue.SubscriberBuffer)
	assert.Equal(t, "none", config.Tracing.Exporter)
}

func TestLoadConfig_EnvOverridesKeysMissingFromFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	t.Setenv("MEDIAQ_SERVER_PORT", "9090")
	t.Setenv("MEDIAQ_DOWNLOAD_DEFAULT_FORMAT", "mp3")
	t.Setenv("MEDIAQ_TRACING_EXPORTER", "stdout")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "mp3", config.Download.DefaultFormat)
	assert.Equal(t, "stdout", config.Tracing.Exporter)
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "download:\n  base_dir: ~/videos\nlogging:\n  logs_dir: $HOME/logs\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "videos"), config.Download.BaseDir)
	assert.Equal(t, filepath.Join(home, "logs"), config.Logging.LogsDir)
	assert.Equal(t, filepath.Join(home, "Downloads/media-queue/history.db"), config.Queue.DatabasePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port", "server:\n  port: 0\n"},
		{"retries", "download:\n  max_retries: -1\n"},
		{"format", "download:\n  default_format: avi\n"},
		{"quality", "download:\n  default_quality: 999\n"},
		{"buffer", "queue:\n  subscriber_buffer: 0\n"},
		{"exporter", "tracing:\n  exporter: zipkin\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveConfig(t *testing.T) {
	config := domain.DefaultConfig()
	config.Server.Port = 7070
	config.Download.BaseDir = "/srv/media"
	config.Download.RetryDelay = 3 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, loaded.Server.Port)
	assert.Equal(t, "/srv/media", loaded.Download.BaseDir)
	assert.Equal(t, 3*time.Second, loaded.Download.RetryDelay)
}
