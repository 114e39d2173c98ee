// Package config loads runtime settings from defaults, an optional YAML file
// and the environment (.env files included).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfigPathEnvVar names the environment variable pointing at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/popularmovies/config.yaml",
}

// Config holds all application configuration
type Config struct {
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Worker   WorkerConfig   `koanf:"worker"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TMDBConfig holds catalog API settings
type TMDBConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	ImageBaseURL    string        `koanf:"image_base_url"`
	PosterSize      string        `koanf:"poster_size"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second
	RateBurst       int           `koanf:"rate_burst"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per IP, 0 disables
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the favorites store backend
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	MetadataTTL time.Duration `koanf:"metadata_ttl"`
	Dir         string        `koanf:"dir"` // badger directory, empty keeps the disk tier in memory
	Disabled    bool          `koanf:"disabled"`
}

// WorkerConfig holds background fetch worker settings
type WorkerConfig struct {
	QueueSize       int           `koanf:"queue_size"`
	RefreshInterval time.Duration `koanf:"refresh_interval"` // 0 disables periodic refresh
	TaskTimeout     time.Duration `koanf:"task_timeout"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			ImageBaseURL:    "https://image.tmdb.org/t/p/",
			PosterSize:      "w185",
			ConnectTimeout:  3 * time.Second,
			ReadTimeout:     5 * time.Second,
			Timeout:         10 * time.Second,
			RateLimit:       4,
			RateBurst:       8,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       120,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "popularmovies.db",
		},
		Cache: CacheConfig{
			MetadataTTL: 24 * time.Hour,
			Dir:         ".cache",
		},
		Worker: WorkerConfig{
			QueueSize:       50,
			RefreshInterval: 12 * time.Hour,
			TaskTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks settings that every command relies on.
// The API key is checked separately by RequireAPIKey since local-only
// commands (favorites, cache) run without it.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.TMDB.BaseURL == "" {
		errs = append(errs, errors.New("TMDB_BASE_URL is required"))
	}
	if c.TMDB.RateLimit <= 0 || c.TMDB.RateBurst <= 0 {
		errs = append(errs, errors.New("TMDB rate limit and burst must be positive"))
	}
	if c.TMDB.Timeout <= 0 {
		errs = append(errs, errors.New("TMDB timeout must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Cache.MetadataTTL <= 0 {
		errs = append(errs, errors.New("CACHE_METADATA_TTL must be positive"))
	}
	if c.Worker.QueueSize <= 0 {
		errs = append(errs, errors.New("WORKER_QUEUE_SIZE must be positive"))
	}
	if c.Worker.RefreshInterval < 0 {
		errs = append(errs, errors.New("WORKER_REFRESH_INTERVAL must not be negative"))
	}

	return errors.Join(errs...)
}

// RequireAPIKey fails when no TMDB key is configured
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.TMDB.APIKey) == "" {
		return errors.New("TMDB_API_KEY environment variable is required")
	}
	return nil
}
