package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, "w185", cfg.TMDB.PosterSize)
	assert.Equal(t, 3*time.Second, cfg.TMDB.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.TMDB.ReadTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MetadataTTL)
	assert.Equal(t, 12*time.Hour, cfg.Worker.RefreshInterval)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("TMDB_API_KEY", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost dbname=movies")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKER_REFRESH_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.TMDB.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost dbname=movies", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Zero(t, cfg.Worker.RefreshInterval)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestMetadataTTLAcceptsMinutesOrDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"90", 90 * time.Minute},
		{"1440", 24 * time.Hour},
		{"2h30m", 150 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
			t.Setenv("CACHE_METADATA_TTL", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Cache.MetadataTTL)
		})
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := `
tmdb:
  poster_size: w342
server:
  port: 7070
cache:
  dir: ""
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "7171")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "w342", cfg.TMDB.PosterSize)
	assert.Equal(t, 7171, cfg.Server.Port, "environment wins over file")
	assert.Empty(t, cfg.Cache.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "DATABASE_DRIVER"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "DATABASE_DSN"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "PORT"},
		{"zero burst", func(c *Config) { c.TMDB.RateBurst = 0 }, "rate limit"},
		{"zero ttl", func(c *Config) { c.Cache.MetadataTTL = 0 }, "CACHE_METADATA_TTL"},
		{"negative refresh", func(c *Config) { c.Worker.RefreshInterval = -time.Second }, "WORKER_REFRESH_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.RequireAPIKey())

	cfg.TMDB.APIKey = "  "
	assert.Error(t, cfg.RequireAPIKey())

	cfg.TMDB.APIKey = "k"
	assert.NoError(t, cfg.RequireAPIKey())
}
