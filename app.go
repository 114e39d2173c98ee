package main

import (
	"errors"
	"fmt"

	"github.com/torrescalazans/popularmovies/cache"
	"github.com/torrescalazans/popularmovies/caching"
	"github.com/torrescalazans/popularmovies/config"
	"github.com/torrescalazans/popularmovies/favorites"
	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/metadata"
	"github.com/torrescalazans/popularmovies/types"
)

// appParts selects what a command needs so local-only commands run without an API key
type appParts struct {
	catalog bool // provider, cache tiers and background worker
	caches  bool // provider and cache tiers only, no API key needed
	store   bool
	refresh bool // periodic cache warm-up, only for serve
}

// App holds the wired components
type App struct {
	cfg      *config.Config
	memory   *cache.Cache
	disk     *caching.Cache
	provider *metadata.Provider
	worker   *caching.BackgroundWork
	store    *favorites.Store
}

func newApp(cfg *config.Config, parts appParts) (*App, error) {
	app := &App{cfg: cfg}

	if parts.catalog {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
	}
	if parts.catalog || parts.caches {
		if err := app.openCaches(); err != nil {
			app.Close()
			return nil, err
		}
	}
	if parts.catalog {
		app.startWorker(parts.refresh)
	}

	if parts.store {
		store, err := favorites.Open(favorites.Config{
			Driver:   cfg.Database.Driver,
			DSN:      cfg.Database.DSN,
			LogLevel: cfg.Logging.Level,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		store.Register(favorites.URIFavorites, true, func(uri string) {
			logging.Debug().Str("uri", uri).Msg("Favorites changed")
		})
		app.store = store
	}

	return app, nil
}

func (app *App) openCaches() error {
	cfg := app.cfg

	var tiers []types.Cache
	if !cfg.Cache.Disabled {
		app.memory = cache.NewCache()
		tiers = append(tiers, app.memory)

		disk, err := caching.Open(cfg.Cache.Dir)
		if err != nil {
			return fmt.Errorf("failed to open disk cache: %w", err)
		}
		app.disk = disk
		tiers = append(tiers, disk)

		logging.Info().
			Str("dir", cfg.Cache.Dir).
			Dur("metadata_ttl", cfg.Cache.MetadataTTL).
			Msg("Caching system initialized")
	}

	app.provider = metadata.NewMetadataProvider(metadata.Config{
		APIKey:          cfg.TMDB.APIKey,
		BaseURL:         cfg.TMDB.BaseURL,
		ImageBaseURL:    cfg.TMDB.ImageBaseURL,
		PosterSize:      cfg.TMDB.PosterSize,
		ConnectTimeout:  cfg.TMDB.ConnectTimeout,
		ReadTimeout:     cfg.TMDB.ReadTimeout,
		Timeout:         cfg.TMDB.Timeout,
		CacheTTL:        cfg.Cache.MetadataTTL,
		RateLimit:       cfg.TMDB.RateLimit,
		RateBurst:       cfg.TMDB.RateBurst,
		BreakerFailures: cfg.TMDB.BreakerFailures,
		BreakerTimeout:  cfg.TMDB.BreakerTimeout,
	}, tiers...)

	return nil
}

func (app *App) startWorker(refresh bool) {
	cfg := app.cfg
	opts := caching.WorkerOptions{
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
	}
	if refresh {
		opts.RefreshInterval = cfg.Worker.RefreshInterval
	}
	app.worker = caching.NewBackgroundWorker(app.provider, opts)
}

// Stats reports cache tier sizes and worker queue usage
func (app *App) Stats() map[string]interface{} {
	stats := map[string]interface{}{}
	if app.provider != nil {
		stats["cache"] = app.provider.GetCacheStats()
	}
	if app.worker != nil {
		stats["queue"] = map[string]int{
			"size":     app.worker.GetQueueSize(),
			"capacity": app.worker.GetQueueCapacity(),
		}
	}
	return stats
}

// Close stops the worker within the shutdown timeout, flushes the disk cache
// and closes the database
func (app *App) Close() error {
	var errs []error

	if app.worker != nil && !app.worker.Stop(app.cfg.Server.ShutdownTimeout) {
		errs = append(errs, errors.New("background worker did not stop in time"))
	}

	if app.disk != nil {
		if err := app.disk.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush disk cache: %w", err))
		}
		if err := app.disk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close disk cache: %w", err))
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close favorites store: %w", err))
		}
	}

	return errors.Join(errs...)
}
