// Package server exposes the catalog and the favorites store as a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torrescalazans/popularmovies/caching"
	"github.com/torrescalazans/popularmovies/types"
)

// Manifest describes the service at GET /
type Manifest struct {
	ID          string   `json:"id"`
	Version     string   `json:"version"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Resources   []string `json:"resources"`
}

// DefaultManifest is served when no manifest is configured
var DefaultManifest = Manifest{
	ID:          "com.popularmovies.api",
	Version:     "1.0.0",
	Name:        "PopularMovies",
	Description: "Popular and top rated movies from TMDB with trailers, reviews and local favorites",
	Resources:   []string{"movies", "trailers", "reviews", "favorites"},
}

// Catalog runs fetch tasks, normally through the background worker
type Catalog interface {
	Do(ctx context.Context, task caching.FetchTask) (caching.Result, error)
}

// FavoritesStore is the part of the favorites store the API uses
type FavoritesStore interface {
	List(ctx context.Context) ([]types.Movie, error)
	Search(ctx context.Context, query string) ([]types.Movie, error)
	QueryByMovieID(ctx context.Context, movieID string) ([]types.Movie, error)
	Insert(ctx context.Context, movie types.Movie) (int64, error)
	Delete(ctx context.Context, movieID string) (int64, error)
	Toggle(ctx context.Context, movie types.Movie) (bool, error)
}

// Options tunes the middleware stack
type Options struct {
	RateLimit      int                           // requests per minute per client IP, 0 disables
	RequestTimeout time.Duration                 // 0 disables
	Stats          func() map[string]interface{} // served on /stats when set
}

// Server routes API requests
type Server struct {
	manifest  Manifest
	catalog   Catalog
	favorites FavoritesStore
	router    chi.Router
}

func New(manifest Manifest, catalog Catalog, favorites FavoritesStore, opts Options) *Server {
	s := &Server{
		manifest:  manifest,
		catalog:   catalog,
		favorites: favorites,
	}
	s.router = s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestIDLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)
	if opts.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, opts.Stats())
		})
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.Limit(
				opts.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				}),
			))
		}
		if opts.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(opts.RequestTimeout))
		}

		r.Get("/", s.handleManifest)

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleMovies)
			r.Get("/{id}/trailers", s.handleTrailers)
			r.Get("/{id}/reviews", s.handleReviews)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", s.handleListFavorites)
			r.Post("/", s.handleAddFavorite)
			r.Get("/{movieID}", s.handleShowFavorite)
			r.Delete("/{movieID}", s.handleDeleteFavorite)
			r.Put("/{movieID}/toggle", s.handleToggleFavorite)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
