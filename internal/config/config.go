package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/mediastash/mediastash/internal/batch"
	"github.com/mediastash/mediastash/internal/media"
	"github.com/mediastash/mediastash/internal/metrics"
	storages3 "github.com/mediastash/mediastash/internal/storage/s3"
	"github.com/mediastash/mediastash/pkg/backoff"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Global  GlobalConfig   `yaml:"global"`
	Storage StorageConfig  `yaml:"storage"`
	Batch   BatchConfig    `yaml:"batch"`
	Media   media.Config   `yaml:"media"`
	Metrics metrics.Config `yaml:"metrics"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// StorageConfig wraps the S3 store configuration with its bucket.
type StorageConfig struct {
	Bucket string           `yaml:"bucket"`
	S3     storages3.Config `yaml:"s3"`
}

// BatchConfig represents batch executor defaults.
type BatchConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	BackoffMode   string        `yaml:"backoff_mode"`
	StopOnError   bool          `yaml:"stop_on_error"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
		},
		Storage: StorageConfig{
			S3: *storages3.DefaultConfig(),
		},
		Batch: BatchConfig{
			Concurrency:   batch.DefaultConcurrency,
			RetryAttempts: batch.DefaultRetryAttempts,
			RetryDelay:    batch.DefaultRetryDelay,
			BackoffMode:   "linear",
		},
		Media: media.Config{
			KeyPrefix:     "media",
			MaxUploadSize: media.DefaultMaxUploadSize,
		},
		Metrics: metrics.Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "mediastash",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("MEDIASTASH_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("MEDIASTASH_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	// Storage settings
	if val := os.Getenv("MEDIASTASH_BUCKET"); val != "" {
		c.Storage.Bucket = val
	}
	if val := os.Getenv("MEDIASTASH_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("MEDIASTASH_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("MEDIASTASH_S3_ACCESS_KEY_ID"); val != "" {
		c.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("MEDIASTASH_S3_SECRET_ACCESS_KEY"); val != "" {
		c.Storage.S3.SecretAccessKey = val
	}
	if val := os.Getenv("MEDIASTASH_S3_FORCE_PATH_STYLE"); val != "" {
		c.Storage.S3.ForcePathStyle = strings.ToLower(val) == "true"
	}

	// Batch settings
	if val := os.Getenv("MEDIASTASH_BATCH_CONCURRENCY"); val != "" {
		if concurrency, err := strconv.Atoi(val); err == nil {
			c.Batch.Concurrency = concurrency
		}
	}
	if val := os.Getenv("MEDIASTASH_BATCH_RETRY_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil {
			c.Batch.RetryAttempts = attempts
		}
	}
	if val := os.Getenv("MEDIASTASH_BATCH_RETRY_DELAY"); val != "" {
		if delay, err := time.ParseDuration(val); err == nil {
			c.Batch.RetryDelay = delay
		}
	}
	if val := os.Getenv("MEDIASTASH_BATCH_BACKOFF_MODE"); val != "" {
		c.Batch.BackoffMode = val
	}
	if val := os.Getenv("MEDIASTASH_BATCH_STOP_ON_ERROR"); val != "" {
		c.Batch.StopOnError = strings.ToLower(val) == "true"
	}

	// Metrics settings
	if val := os.Getenv("MEDIASTASH_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("MEDIASTASH_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket must be set")
	}

	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch concurrency must be greater than 0")
	}
	if c.Batch.RetryAttempts < 1 {
		return fmt.Errorf("batch retry_attempts must be at least 1")
	}
	if c.Batch.RetryDelay < 0 {
		return fmt.Errorf("batch retry_delay cannot be negative")
	}
	if _, err := backoff.ForMode(c.Batch.BackoffMode, c.Batch.RetryDelay); err != nil {
		return fmt.Errorf("invalid batch backoff_mode: %s", c.Batch.BackoffMode)
	}

	if c.Media.MaxUploadSize <= 0 {
		return fmt.Errorf("media max_upload_size must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// BatchOptions builds executor options from the configured defaults.
func (c *Configuration) BatchOptions() (batch.Options, error) {
	strategy, err := backoff.ForMode(c.Batch.BackoffMode, c.Batch.RetryDelay)
	if err != nil {
		return batch.Options{}, err
	}
	return batch.Options{
		Concurrency:   c.Batch.Concurrency,
		RetryAttempts: c.Batch.RetryAttempts,
		RetryDelay:    c.Batch.RetryDelay,
		StopOnError:   c.Batch.StopOnError,
		Backoff:       strategy,
	}, nil
}
