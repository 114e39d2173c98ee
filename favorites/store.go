package favorites

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/metrics"
	"github.com/torrescalazans/popularmovies/types"
	"github.com/torrescalazans/popularmovies/utils"
)

// DefaultSQLitePath is used when the sqlite driver is selected without a DSN
const DefaultSQLitePath = "popularmovies.db"

var ErrInvalidMovie = errors.New("favorite movie needs an id")

// Config selects the database backing the store
type Config struct {
	Driver        string // sqlite (default) or postgres
	DSN           string
	LogLevel      string
	SlowThreshold time.Duration
}

// Store persists favorite movies through gorm
type Store struct {
	db        *gorm.DB
	matcher   *utils.TitleMatcher
	observers *observers
}

// Open connects to the configured database and migrates the favorites table
func Open(cfg Config) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logging.GormLogger(cfg.LogLevel, cfg.SlowThreshold),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		path := cfg.DSN
		if path == "" {
			path = DefaultSQLitePath
		}
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(path), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		// single writer
		sqlDB.SetMaxOpenConns(1)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}

	logging.Info().Str("driver", db.Dialector.Name()).Msg("Favorites store ready")
	return s, nil
}

// New wraps an existing connection. It does not migrate.
func New(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		matcher:   utils.NewTitleMatcher(0),
		observers: newObservers(),
	}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Favorite{}); err != nil {
		return fmt.Errorf("failed to migrate favorites: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Register subscribes fn to changes at uri. With descendants set, changes to
// rows below uri ("favorites/7" under "favorites") are delivered too.
// The returned func unregisters.
func (s *Store) Register(uri string, descendants bool, fn Observer) func() {
	return s.observers.register(uri, descendants, fn)
}

// Insert appends a row and returns its id. The same movie may be stored more than once.
// Nil genre ids are stored as NULL and read back as an empty slice.
func (s *Store) Insert(ctx context.Context, movie types.Movie) (int64, error) {
	if strings.TrimSpace(movie.ID) == "" {
		metrics.FavoritesOperations.WithLabelValues("insert", "error").Inc()
		return 0, ErrInvalidMovie
	}

	row := FromMovie(movie)
	err := s.db.WithContext(ctx).Create(&row).Error
	metrics.FavoritesOperations.WithLabelValues("insert", metrics.Result(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("insert favorite %s: %w", movie.ID, err)
	}

	logging.Debug().Str("movie_id", movie.ID).Int64("row_id", row.ID).Msg("Favorite inserted")
	s.observers.notify(FavoriteURI(row.ID))
	return row.ID, nil
}

func (s *Store) QueryByMovieID(ctx context.Context, movieID string) ([]types.Movie, error) {
	var rows []Favorite
	err := s.db.WithContext(ctx).
		Where("movie_id = ?", movieID).
		Order("id ASC").
		Find(&rows).Error
	metrics.FavoritesOperations.WithLabelValues("query", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("query favorite %s: %w", movieID, err)
	}
	return toMovies(rows), nil
}

// List returns every favorite ordered by title
func (s *Store) List(ctx context.Context) ([]types.Movie, error) {
	var rows []Favorite
	err := s.db.WithContext(ctx).
		Order("movie_title ASC").
		Order("id ASC").
		Find(&rows).Error
	metrics.FavoritesOperations.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return toMovies(rows), nil
}

// Search filters List by a fuzzy title match. An empty query returns everything.
func (s *Store) Search(ctx context.Context, query string) ([]types.Movie, error) {
	movies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return movies, nil
	}

	matched := make([]types.Movie, 0, len(movies))
	for _, m := range movies {
		if s.matcher.Matches(query, m.Title) || s.matcher.Matches(query, m.OriginalTitle) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

func (s *Store) IsFavorite(ctx context.Context, movieID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Favorite{}).Where("movie_id = ?", movieID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check favorite %s: %w", movieID, err)
	}
	return count > 0, nil
}

// Toggle removes the movie when it is a favorite and stores it otherwise.
// It reports whether the movie is a favorite afterwards.
func (s *Store) Toggle(ctx context.Context, movie types.Movie) (bool, error) {
	if strings.TrimSpace(movie.ID) == "" {
		metrics.FavoritesOperations.WithLabelValues("toggle", "error").Inc()
		return false, ErrInvalidMovie
	}

	var nowFavorite bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Favorite{}).Where("movie_id = ?", movie.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return tx.Where("movie_id = ?", movie.ID).Delete(&Favorite{}).Error
		}
		row := FromMovie(movie)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		nowFavorite = true
		return nil
	})
	metrics.FavoritesOperations.WithLabelValues("toggle", metrics.Result(err)).Inc()
	if err != nil {
		return false, fmt.Errorf("toggle favorite %s: %w", movie.ID, err)
	}

	logging.Debug().Str("movie_id", movie.ID).Bool("favorite", nowFavorite).Msg("Favorite toggled")
	s.observers.notify(URIFavorites)
	return nowFavorite, nil
}

// Delete removes every row for the movie and returns how many went away
func (s *Store) Delete(ctx context.Context, movieID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("movie_id = ?", movieID).Delete(&Favorite{})
	metrics.FavoritesOperations.WithLabelValues("delete", metrics.Result(res.Error)).Inc()
	if res.Error != nil {
		return 0, fmt.Errorf("delete favorite %s: %w", movieID, res.Error)
	}

	if res.RowsAffected > 0 {
		logging.Debug().Str("movie_id", movieID).Int64("rows", res.RowsAffected).Msg("Favorite deleted")
		s.observers.notify(URIFavorites)
	}
	return res.RowsAffected, nil
}

func (s *Store) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Favorite{})
	metrics.FavoritesOperations.WithLabelValues("clear", metrics.Result(res.Error)).Inc()
	if res.Error != nil {
		return 0, fmt.Errorf("clear favorites: %w", res.Error)
	}

	s.observers.notify(URIFavorites)
	return res.RowsAffected, nil
}
