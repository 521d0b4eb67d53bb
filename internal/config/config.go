package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Upload     UploadConfig     `mapstructure:"upload" validate:"required"`
	Staging    StagingConfig    `mapstructure:"staging" validate:"required"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Extract    ExtractConfig    `mapstructure:"extract" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `mapstructure:"url" validate:"required"`
}

// UploadConfig controls acceptance of incoming documents.
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes" validate:"required,gt=0"`
}

// StagingConfig controls where uploaded documents are held while a task
// is in flight.
type StagingConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// DispatcherConfig selects and tunes the task dispatch backend.
// Mode "inprocess" runs a worker pool inside the API server; mode "queue"
// enqueues to Redis for separate worker processes.
type DispatcherConfig struct {
	Mode               string        `mapstructure:"mode" validate:"required,oneof=inprocess queue"`
	Workers            int           `mapstructure:"workers" validate:"required,gt=0"`
	QueueSize          int           `mapstructure:"queue_size" validate:"required,gt=0"`
	StuckTaskAge       time.Duration `mapstructure:"stuck_task_age" validate:"required"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"required"`
}

// QueueConfig contains Redis queue settings, used when the dispatcher mode
// is "queue" and by the worker binary.
type QueueConfig struct {
	RedisAddr   string `mapstructure:"redis_addr"`
	Name        string `mapstructure:"name"`
	Concurrency int    `mapstructure:"concurrency" validate:"omitempty,gt=0"`
}

// ExtractConfig contains text extraction engine settings.
type ExtractConfig struct {
	Engine       string        `mapstructure:"engine" validate:"required,oneof=marker tesseract"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required"`
	MarkerBin    string        `mapstructure:"marker_bin"`
	PdftoppmBin  string        `mapstructure:"pdftoppm_bin"`
	TesseractBin string        `mapstructure:"tesseract_bin"`
	Lang         string        `mapstructure:"lang"`
	DPI          int           `mapstructure:"dpi" validate:"omitempty,gt=0"`
}
