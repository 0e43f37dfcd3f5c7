package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the photo timer
type Config struct {
	// Rotation timing
	Rotation RotationConfig `yaml:"rotation" json:"rotation"`

	// Page fetching
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Image resolution
	Images ImageConfig `yaml:"images" json:"images"`

	// Rate limiting for outgoing requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for page and image requests
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Session persistence
	State StateConfig `yaml:"state" json:"state"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RotationConfig holds the countdown settings
type RotationConfig struct {
	DefaultMinutes  int           `yaml:"default_minutes" json:"default_minutes"`
	DurationChoices []int         `yaml:"duration_choices" json:"duration_choices"`
	TickInterval    time.Duration `yaml:"tick_interval" json:"tick_interval"`
}

// FetchConfig holds page fetcher settings
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// ImageConfig holds image loader settings
type ImageConfig struct {
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Workers  int           `yaml:"workers" json:"workers"`
	MaxBytes int64         `yaml:"max_bytes" json:"max_bytes"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	// Strategy is "sliding_window" or "token_bucket"
	Strategy string `yaml:"strategy" json:"strategy"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// StateConfig holds session persistence configuration
type StateConfig struct {
	// Backend is either "file" or "sqlite"
	Backend string `yaml:"backend" json:"backend"`
	// Path of the snapshot; empty means the platform data directory
	Path   string `yaml:"path" json:"path"`
	Backup bool   `yaml:"backup" json:"backup"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnIntervalEnd    bool   `yaml:"on_interval_end" json:"on_interval_end"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultDurationChoices are the rotation lengths offered to the user, in minutes
var DefaultDurationChoices = []int{5, 10, 15, 20, 30}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Rotation: RotationConfig{
			DefaultMinutes:  5,
			DurationChoices: slices.Clone(DefaultDurationChoices),
			TickInterval:    time.Second,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			MaxBodyBytes: 10 << 20,
		},
		Images: ImageConfig{
			Timeout:  30 * time.Second,
			Workers:  2,
			MaxBytes: 50 << 20,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Strategy:          "sliding_window",
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "",
			Backup:  true,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnIntervalEnd:    true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if minutes := os.Getenv("PHOTOTIMER_MINUTES"); minutes != "" {
		val, err := strconv.Atoi(minutes)
		if err != nil {
			return fmt.Errorf("invalid PHOTOTIMER_MINUTES %q: %w", minutes, err)
		}
		c.Rotation.DefaultMinutes = val
	}

	if userAgent := os.Getenv("PHOTOTIMER_USER_AGENT"); userAgent != "" {
		c.Fetch.UserAgent = userAgent
	}

	if rpm := os.Getenv("PHOTOTIMER_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if strategy := os.Getenv("PHOTOTIMER_RATE_LIMIT_STRATEGY"); strategy != "" {
		c.RateLimit.Strategy = strings.ToLower(strategy)
	}

	if workers := os.Getenv("PHOTOTIMER_IMAGE_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Images.Workers = val
		}
	}

	if backend := os.Getenv("PHOTOTIMER_STATE_BACKEND"); backend != "" {
		c.State.Backend = strings.ToLower(backend)
	}
	if statePath := os.Getenv("PHOTOTIMER_STATE_PATH"); statePath != "" {
		c.State.Path = statePath
	}

	if notifEnabled := os.Getenv("PHOTOTIMER_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("PHOTOTIMER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("PHOTOTIMER_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".phototimer.yaml",
		".phototimer.yml",
		filepath.Join(home, ".config", "phototimer", "config.yaml"),
		filepath.Join(home, ".config", "phototimer", "config.yml"),
		filepath.Join(home, ".phototimer.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Rotation.DurationChoices) == 0 {
		errs = append(errs, errors.New("at least one duration choice is required"))
	}
	for _, choice := range c.Rotation.DurationChoices {
		if choice <= 0 {
			errs = append(errs, fmt.Errorf("duration choice %d must be positive", choice))
		}
	}
	if err := c.ValidateDurationChoice(c.Rotation.DefaultMinutes); err != nil {
		errs = append(errs, fmt.Errorf("default minutes: %w", err))
	}
	if c.Rotation.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("fetch max body bytes must be positive"))
	}

	if c.Images.Timeout <= 0 {
		errs = append(errs, errors.New("image timeout must be positive"))
	}
	if c.Images.Workers <= 0 {
		errs = append(errs, errors.New("image workers must be positive"))
	}
	if c.Images.Workers > 8 {
		errs = append(errs, errors.New("image workers should not exceed 8"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	validStrategies := map[string]bool{"sliding_window": true, "token_bucket": true}
	if !validStrategies[strings.ToLower(c.RateLimit.Strategy)] {
		errs = append(errs, fmt.Errorf("invalid rate limit strategy %q", c.RateLimit.Strategy))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.State.Backend)] {
		errs = append(errs, fmt.Errorf("invalid state backend %q", c.State.Backend))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateDurationChoice checks that minutes is one of the configured choices.
// The rotation engine itself accepts any positive number of seconds.
func (c *Config) ValidateDurationChoice(minutes int) error {
	if !slices.Contains(c.Rotation.DurationChoices, minutes) {
		return fmt.Errorf("%d minutes is not one of %v", minutes, c.Rotation.DurationChoices)
	}
	return nil
}

// NextDurationChoice returns the choice following minutes, wrapping around
func (c *Config) NextDurationChoice(minutes int) int {
	choices := c.Rotation.DurationChoices
	if len(choices) == 0 {
		return minutes
	}
	idx := slices.Index(choices, minutes)
	return choices[(idx+1)%len(choices)]
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if minutes, ok := flags["minutes"].(int); ok && minutes > 0 {
		c.Rotation.DefaultMinutes = minutes
	}
	if backend, ok := flags["state-backend"].(string); ok && backend != "" {
		c.State.Backend = strings.ToLower(backend)
	}
	if statePath, ok := flags["state-path"].(string); ok && statePath != "" {
		c.State.Path = statePath
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Images.Workers = workers
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if strategy, ok := flags["rate-limit-strategy"].(string); ok && strategy != "" {
		c.RateLimit.Strategy = strings.ToLower(strategy)
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".phototimer.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
