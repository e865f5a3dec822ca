package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir        string        `mapstructure:"base_dir"`
	OutputTemplate string        `mapstructure:"output_template"`
	YTDLPBinary    string        `mapstructure:"ytdlp_binary"`
	CookieFile     string        `mapstructure:"cookie_file"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	PreviewTimeout time.Duration `mapstructure:"preview_timeout"`
	AllowedSchemes []string      `mapstructure:"allowed_schemes"`
	DefaultFormat  string        `mapstructure:"default_format"`
	DefaultQuality string        `mapstructure:"default_quality"`
	AutoStart      bool          `mapstructure:"auto_start"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath     string `mapstructure:"database_path"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	Exporter    string `mapstructure:"exporter"` // none, stdout
	ServiceName string `mapstructure:"service_name"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 5000,
		},
		Download: DownloadConfig{
			BaseDir:        "$HOME/Downloads/media-queue",
			OutputTemplate: "%(title)s.%(ext)s",
			YTDLPBinary:    "yt-dlp",
			MaxRetries:     0,
			RetryDelay:     5 * time.Second,
			PreviewTimeout: 30 * time.Second,
			AllowedSchemes: []string{"http", "https"},
			DefaultFormat:  string(FormatMP4),
			DefaultQuality: string(Quality1080),
			AutoStart:      false,
		},
		Queue: QueueConfig{
			DatabasePath:     "$HOME/Downloads/media-queue/history.db",
			SubscriberBuffer: 256,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/Downloads/media-queue/logs",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "media-queue",
		},
	}
}
