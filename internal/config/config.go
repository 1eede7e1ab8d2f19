package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/needledrop/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Matching  MatchingConfig  `yaml:"matching"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// OptimizeInterval schedules PRAGMA optimize; zero disables it.
	OptimizeInterval time.Duration `yaml:"optimize_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// MatchingConfig tunes the match engine.
type MatchingConfig struct {
	FallbackTimeout time.Duration `yaml:"fallback_timeout"`
	Concurrency     int           `yaml:"concurrency"`
	AutoApproveTop  bool          `yaml:"auto_approve_top"`
}

// ProvidersConfig holds provider credentials and switches.
type ProvidersConfig struct {
	DiscogsToken  string `yaml:"discogs_token"`
	YouTubeAPIKey string `yaml:"youtube_api_key"`
	DeezerEnabled bool   `yaml:"deezer_enabled"`
	UserAgent     string `yaml:"user_agent"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Database: DatabaseConfig{
			Path:             "/data/needledrop.db",
			OptimizeInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			FileMaxSizeMB:  100,
			FileMaxFiles:   3,
			FileMaxAgeDays: 30,
		},
		Matching: MatchingConfig{
			FallbackTimeout: 8 * time.Second,
			Concurrency:     1,
			AutoApproveTop:  true,
		},
		Providers: ProvidersConfig{
			DeezerEnabled: true,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoggingManagerConfig converts the logging section for logging.NewManager.
func (c *Config) LoggingManagerConfig() logging.Config {
	return logging.Config{
		Level:          c.Logging.Level,
		Format:         c.Logging.Format,
		FilePath:       c.Logging.FilePath,
		FileMaxSizeMB:  c.Logging.FileMaxSizeMB,
		FileMaxFiles:   c.Logging.FileMaxFiles,
		FileMaxAgeDays: c.Logging.FileMaxAgeDays,
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("ND_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ND_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ND_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("ND_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ND_DB_OPTIMIZE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ND_DB_OPTIMIZE_INTERVAL: %w", err)
		}
		c.Database.OptimizeInterval = d
	}
	if v := os.Getenv("ND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ND_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ND_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("ND_FALLBACK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ND_FALLBACK_TIMEOUT: %w", err)
		}
		c.Matching.FallbackTimeout = d
	}
	if v := os.Getenv("ND_MATCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ND_MATCH_CONCURRENCY: %w", err)
		}
		c.Matching.Concurrency = n
	}
	if v := os.Getenv("ND_DISCOGS_TOKEN"); v != "" {
		c.Providers.DiscogsToken = v
	}
	if v := os.Getenv("ND_YOUTUBE_API_KEY"); v != "" {
		c.Providers.YouTubeAPIKey = v
	}
	if v := os.Getenv("ND_DEEZER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ND_DEEZER_ENABLED: %w", err)
		}
		c.Providers.DeezerEnabled = b
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Database.OptimizeInterval < 0 {
		return fmt.Errorf("optimize_interval must not be negative")
	}
	if c.Matching.FallbackTimeout <= 0 {
		return fmt.Errorf("fallback_timeout must be positive")
	}
	if c.Matching.Concurrency < 1 {
		c.Matching.Concurrency = 1
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	return nil
}
