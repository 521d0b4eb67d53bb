package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, optionally, a
// config.yaml in the working directory. Environment variables (prefixed
// DOCTEXT_, dots replaced by underscores) take precedence over file values.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFromFile behaves like Load but reads the given config file instead of
// searching the working directory. Used by tests.
func LoadFromFile(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A config file is optional; only a malformed one is fatal.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DOCTEXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Dispatcher.Mode == "queue" && cfg.Queue.RedisAddr == "" {
		return nil, fmt.Errorf("configuration validation failed: queue.redis_addr is required when dispatcher.mode is queue")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "data/doctext.db")

	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("staging.dir", filepath.Join(os.TempDir(), "doctext-staging"))

	v.SetDefault("dispatcher.mode", "inprocess")
	v.SetDefault("dispatcher.workers", 2)
	v.SetDefault("dispatcher.queue_size", 100)
	v.SetDefault("dispatcher.stuck_task_age", "30m")
	v.SetDefault("dispatcher.stuck_check_interval", "5m")

	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.name", "doctext")
	v.SetDefault("queue.concurrency", 2)

	v.SetDefault("extract.engine", "marker")
	v.SetDefault("extract.timeout", "10m")
	v.SetDefault("extract.marker_bin", "marker_single")
	v.SetDefault("extract.pdftoppm_bin", "pdftoppm")
	v.SetDefault("extract.tesseract_bin", "tesseract")
	v.SetDefault("extract.lang", "eng")
	v.SetDefault("extract.dpi", 300)
}
