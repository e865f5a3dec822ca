package app

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourusername/media-queue-go/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. MEDIAQ_SERVER_PORT
const EnvPrefix = "MEDIAQ"

// LoadConfig loads configuration from .env, file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	defaults := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.media-queue")
		v.AddConfigPath("/etc/media-queue")
	}

	// Registering every key lets env vars override settings absent from the file
	for key, value := range configValues(defaults) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// configValues flattens config into viper keys
func configValues(config *domain.Config) map[string]any {
	return map[string]any{
		"server.host": config.Server.Host,
		"server.port": config.Server.Port,

		"download.base_dir":        config.Download.BaseDir,
		"download.output_template": config.Download.OutputTemplate,
		"download.ytdlp_binary":    config.Download.YTDLPBinary,
		"download.cookie_file":     config.Download.CookieFile,
		"download.max_retries":     config.Download.MaxRetries,
		"download.retry_delay":     config.Download.RetryDelay.String(),
		"download.preview_timeout": config.Download.PreviewTimeout.String(),
		"download.allowed_schemes": config.Download.AllowedSchemes,
		"download.default_format":  config.Download.DefaultFormat,
		"download.default_quality": config.Download.DefaultQuality,
		"download.auto_start":      config.Download.AutoStart,

		"queue.database_path":     config.Queue.DatabasePath,
		"queue.subscriber_buffer": config.Queue.SubscriberBuffer,

		"notification.enabled": config.Notification.Enabled,
		"notification.sound":   config.Notification.Sound,
		"notification.method":  config.Notification.Method,

		"logging.level":       config.Logging.Level,
		"logging.format":      config.Logging.Format,
		"logging.output_path": config.Logging.OutputPath,
		"logging.logs_dir":    config.Logging.LogsDir,

		"tracing.exporter":     config.Tracing.Exporter,
		"tracing.service_name": config.Tracing.ServiceName,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.CookieFile = expandPath(config.Download.CookieFile)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// $HOME first so it resolves even when the variable is unset
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if len(config.Download.AllowedSchemes) == 0 {
		return fmt.Errorf("at least one allowed URL scheme is required")
	}
	for i, s := range config.Download.AllowedSchemes {
		config.Download.AllowedSchemes[i] = strings.ToLower(strings.TrimSpace(s))
	}

	if _, err := domain.ParseFormat(config.Download.DefaultFormat, domain.FormatMP4); err != nil {
		return fmt.Errorf("invalid default format: %w", err)
	}
	if _, err := domain.ParseQuality(config.Download.DefaultQuality, domain.Quality1080); err != nil {
		return fmt.Errorf("invalid default quality: %w", err)
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Queue.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1")
	}

	if !slices.Contains([]string{"none", "stdout"}, strings.ToLower(config.Tracing.Exporter)) {
		return fmt.Errorf("unsupported trace exporter: %s", config.Tracing.Exporter)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
