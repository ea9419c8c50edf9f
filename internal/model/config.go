package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// APIConfig holds the connection settings for the TaskFlow REST API.
type APIConfig struct {
	// BaseURL is the root URL of the API (e.g., https://taskflow.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"min=1"`

	// RequestsPerSecond caps the client-side request rate.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
}

// PushConfig holds the settings for the push notification channel.
type PushConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the websocket endpoint path on the API origin.
	Path string `mapstructure:"path" yaml:"path" validate:"required,startswith=/"`
}

// InboxConfig holds the notification inbox settings.
type InboxConfig struct {
	// FetchLimit is how many recent notifications to pull.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit" validate:"min=1,max=200"`

	// UnreadPollSec is how often the authoritative unread count is fetched.
	UnreadPollSec int `mapstructure:"unread_poll_sec" yaml:"unread_poll_sec" validate:"min=5"`

	// RecentPollSec is how often the open inbox re-fetches its list.
	RecentPollSec int `mapstructure:"recent_poll_sec" yaml:"recent_poll_sec" validate:"min=5"`
}

// TimerConfig holds the timer reconciliation settings.
type TimerConfig struct {
	// ReconcileSec is how often the running timer is checked against the server.
	ReconcileSec int `mapstructure:"reconcile_sec" yaml:"reconcile_sec" validate:"min=5"`

	// GraceSec is how long after a local start a missing server timer is tolerated.
	GraceSec int `mapstructure:"grace_sec" yaml:"grace_sec" validate:"min=0"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme       string `mapstructure:"theme" yaml:"theme"`
	ShowSidebar bool   `mapstructure:"show_sidebar" yaml:"show_sidebar"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`

	// File is the log destination; empty means <data_dir>/taskflow.log.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Push    PushConfig    `mapstructure:"push" yaml:"push"`
	Inbox   InboxConfig   `mapstructure:"inbox" yaml:"inbox"`
	Timer   TimerConfig   `mapstructure:"timer" yaml:"timer"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// DataDir holds the local database and log file.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
}

// DatabasePath returns the path of the local SQLite database.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "taskflow.db")
}

// LogPath returns the configured log file, or the default inside DataDir.
func (c *AppConfig) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "taskflow.log")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskflow/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskflow", "config.yaml")
}

// defaultDataDir returns ~/.local/share/taskflow, or the working directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "taskflow")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:           "http://localhost:5000/api",
			TimeoutSec:        30,
			RequestsPerSecond: 10,
			MaxRetries:        3,
		},
		Push: PushConfig{
			Enabled: true,
			Path:    "/ws",
		},
		Inbox: InboxConfig{
			FetchLimit:    20,
			UnreadPollSec: 30,
			RecentPollSec: 60,
		},
		Timer: TimerConfig{
			ReconcileSec: 60,
			GraceSec:     15,
		},
		Display: DisplayConfig{
			Theme:       "default",
			ShowSidebar: true,
		},
		Log: LogConfig{
			Level: "INFO",
		},
		DataDir: defaultDataDir(),
	}
}

// setDefaults mirrors defaultAppConfig into viper so that partially
// specified files and environment overrides resolve to sensible values.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("push.enabled", d.Push.Enabled)
	v.SetDefault("push.path", d.Push.Path)
	v.SetDefault("inbox.fetch_limit", d.Inbox.FetchLimit)
	v.SetDefault("inbox.unread_poll_sec", d.Inbox.UnreadPollSec)
	v.SetDefault("inbox.recent_poll_sec", d.Inbox.RecentPollSec)
	v.SetDefault("timer.reconcile_sec", d.Timer.ReconcileSec)
	v.SetDefault("timer.grace_sec", d.Timer.GraceSec)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.show_sidebar", d.Display.ShowSidebar)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("data_dir", d.DataDir)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKFLOW_ (e.g. TASKFLOW_API_BASE_URL)
// override file values. If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, ok := err.(*os.PathError); !ok && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// ValidateConfig checks the struct tags of cfg.
func ValidateConfig(cfg *AppConfig) error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("push", cfg.Push)
	v.Set("inbox", cfg.Inbox)
	v.Set("timer", cfg.Timer)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
