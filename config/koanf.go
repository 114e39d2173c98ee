package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load reads configuration in three layers, later layers winning:
// defaults, an optional YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := normalizeMinutes(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"tmdb_api_key":          "tmdb.api_key",
	"tmdb_base_url":         "tmdb.base_url",
	"tmdb_image_base_url":   "tmdb.image_base_url",
	"tmdb_poster_size":      "tmdb.poster_size",
	"tmdb_connect_timeout":  "tmdb.connect_timeout",
	"tmdb_read_timeout":     "tmdb.read_timeout",
	"tmdb_timeout":          "tmdb.timeout",
	"tmdb_rate_limit":       "tmdb.rate_limit",
	"tmdb_rate_burst":       "tmdb.rate_burst",
	"tmdb_breaker_failures": "tmdb.breaker_failures",
	"tmdb_breaker_timeout":  "tmdb.breaker_timeout",

	"host":              "server.host",
	"port":              "server.port",
	"http_host":         "server.host",
	"http_port":         "server.port",
	"server_rate_limit": "server.rate_limit",
	"shutdown_timeout":  "server.shutdown_timeout",

	"database_driver": "database.driver",
	"database_dsn":    "database.dsn",

	"cache_dir":          "cache.dir",
	"cache_metadata_ttl": "cache.metadata_ttl",
	"cache_disabled":     "cache.disabled",

	"worker_queue_size":       "worker.queue_size",
	"worker_refresh_interval": "worker.refresh_interval",
	"worker_task_timeout":     "worker.task_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// minutePaths accept a bare integer meaning minutes, as older deployments set
// CACHE_METADATA_TTL=1440.
var minutePaths = []string{
	"cache.metadata_ttl",
}

func normalizeMinutes(k *koanf.Koanf) error {
	for _, path := range minutePaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		if err := k.Set(path, fmt.Sprintf("%dm", minutes)); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
